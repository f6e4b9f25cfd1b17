package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angriff36/manifest/internal/auth"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

// entitySlugs maps URL path segments onto registered entity names.
var entitySlugs = map[string]string{
	"recipes":         model.EntityRecipe,
	"recipe-versions": model.EntityRecipeVersion,
	"dishes":          model.EntityDish,
	"menus":           model.EntityMenu,
	"prep-tasks":      model.EntityPrepTask,
	"prep-list-items": model.EntityPrepListItem,
	"shipments":       model.EntityShipment,
	"availability":    model.EntityAvailability,
}

// Handlers holds dependencies for HTTP request handlers.
type Handlers struct {
	DB                  *storage.DB
	Executor            *runtime.Executor
	Registry            *runtime.Registry
	JWTMgr              *auth.JWTManager
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error; the inner error may be nil
	healthAt    atomic.Int64 // unix nanos of the last database ping
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.OpenAPISpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.OpenAPISpec)
}

// tenantFromRequest resolves the tenant for a request, writing the error
// response itself when resolution fails.
func (h *Handlers) tenantFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	if claims.TenantID == "" {
		writeError(w, http.StatusBadRequest, "Tenant not found")
		return "", false
	}
	return claims.TenantID, true
}

// HandleCommand runs a command against an entity instance. The path carries
// the entity slug and command name; the body is the raw command input.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	entity, ok := entitySlugs[r.PathValue("entity")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown command")
		return
	}
	command := r.PathValue("command")

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	result, err := h.Executor.RunCommand(r.Context(), entity, command, tenantID, input, idempotencyKey)
	if err != nil {
		h.writeCommandError(w, r, entity, command, err)
		return
	}

	if !result.Success {
		message := "command rejected"
		if result.GuardFailure != nil {
			message = result.GuardFailure.Formatted
		}
		writeError(w, http.StatusUnprocessableEntity, message)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, model.CommandResponse{
		Success:  true,
		Result:   result.Result,
		Warnings: result.Warnings,
	})
}

func (h *Handlers) writeCommandError(w http.ResponseWriter, r *http.Request, entity, command string, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, "unknown command")
	case errors.Is(err, model.ErrStaleState):
		writeError(w, http.StatusConflict, "stale state, retry the request")
	case errors.Is(err, model.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency key reused with a different request")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.Logger.Error("command failed",
			"entity", entity,
			"command", command,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// HandleGetState returns the manifest-state row for an entity instance.
func (h *Handlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	entity, ok := entitySlugs[r.PathValue("entity")]
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	st, err := h.DB.GetManifestState(r.Context(), tenantID, entity, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.Logger.Error("get manifest state failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleListCommands returns every registered (entity, command) pair.
func (h *Handlers) HandleListCommands(w http.ResponseWriter, r *http.Request) {
	type pair struct {
		Entity  string `json:"entity"`
		Command string `json:"command"`
	}
	var pairs []pair
	for _, c := range h.Registry.Commands() {
		pairs = append(pairs, pair{Entity: c.Entity, Command: c.Command})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Entity != pairs[j].Entity {
			return pairs[i].Entity < pairs[j].Entity
		}
		return pairs[i].Command < pairs[j].Command
	})
	writeJSON(w, http.StatusOK, map[string]any{"commands": pairs})
}

type authTokenRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// HandleAuthToken issues a JWT for a tenant user. Identity verification is
// the deployment's concern (SSO proxy, gateway); this endpoint exists for
// development and for trusted internal callers.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var req authTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "Tenant not found")
		return
	}

	token, expiresAt, err := h.JWTMgr.IssueToken(req.TenantID, req.UserID)
	if err != nil {
		h.Logger.Error("issue token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// HandleHealth reports liveness and database connectivity.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.healthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded", "version": h.Version,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok", "version": h.Version,
	})
}
