package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/auth"
	"github.com/angriff36/manifest/internal/kitchen"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
	"github.com/angriff36/manifest/internal/testutil"
)

var (
	testDB      *storage.DB
	testHandler http.Handler
	testJWT     *auth.JWTManager
)

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	ctx := context.Background()
	logger := testutil.TestLogger()

	var err error
	testDB, err = tc.NewTestDB(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server_test: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close(ctx)

	testJWT, err = auth.NewJWTManager("", "", time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server_test: %v\n", err)
		os.Exit(1)
	}

	registry := runtime.NewRegistry()
	if err := kitchen.Register(registry, kitchen.DefaultThresholds()); err != nil {
		fmt.Fprintf(os.Stderr, "server_test: %v\n", err)
		os.Exit(1)
	}
	executor := runtime.NewExecutor(testDB, registry, logger, 24*time.Hour)

	srv := New(Config{
		DB:                  testDB,
		Executor:            executor,
		Registry:            registry,
		JWTMgr:              testJWT,
		Logger:              logger,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
	testHandler = srv.Handler()

	os.Exit(m.Run())
}

func bearerToken(t *testing.T, tenantID string) string {
	t.Helper()
	token, _, err := testJWT.IssueToken(tenantID, "user-1")
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	testHandler.ServeHTTP(rec, req)
	return rec
}

func seedRecipe(t *testing.T, token string) model.Recipe {
	t.Helper()
	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipes", token, map[string]any{
		"name":             "braised short rib",
		"yield_quantity":   8,
		"difficulty_level": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var r model.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	require.NotEmpty(t, r.ID)
	return r
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCommandRequiresAuth(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "Unauthorized", body.Message)
}

func TestTenantMissingFromClaims(t *testing.T) {
	h := &Handlers{}
	req := httptest.NewRequest(http.MethodPost, "/v1/kitchen/recipes/commands/update", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextKeyClaims, &auth.Claims{UserID: "user-1"}))
	rec := httptest.NewRecorder()

	_, ok := h.tenantFromRequest(rec, req)
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Tenant not found", body.Message)
}

func TestOpenAPISpec(t *testing.T) {
	h := &Handlers{OpenAPISpec: []byte("openapi: 3.1.0\n")}
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	h.HandleOpenAPISpec(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "openapi: 3.1.0")

	empty := &Handlers{}
	rec = httptest.NewRecorder()
	empty.HandleOpenAPISpec(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandGuardBlock(t *testing.T) {
	token := bearerToken(t, "tenant-block")
	recipe := seedRecipe(t, token)

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", token, map[string]any{
		"recipe_id":  recipe.ID,
		"difficulty": 6,
		"prep_time":  30,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Contains(t, body.Message, "difficulty must be between 1 and 5")

	// Blocked commands must not persist anything.
	n, err := testDB.CountRecipeVersions(context.Background(), "tenant-block", recipe.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCommandNegativeTimeBlocked(t *testing.T) {
	token := bearerToken(t, "tenant-negtime")
	recipe := seedRecipe(t, token)

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", token, map[string]any{
		"recipe_id":  recipe.ID,
		"difficulty": 2,
		"prep_time":  -30,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Message, "times cannot be negative")
}

func TestCommandCreateWithWarning(t *testing.T) {
	token := bearerToken(t, "tenant-warn")
	recipe := seedRecipe(t, token)

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", token, map[string]any{
		"recipe_id":  recipe.ID,
		"difficulty": 4,
		"prep_time":  20,
		"cook_time":  40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body model.CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Warnings, 1)
	require.Equal(t, "warnHighDifficulty", body.Warnings[0].GuardID)

	var v model.RecipeVersion
	require.NoError(t, json.Unmarshal(body.Result, &v))
	require.Equal(t, 1, v.Version)
	require.Equal(t, 4, v.Difficulty)
}

func TestCommandUpdateReturns200(t *testing.T) {
	token := bearerToken(t, "tenant-update")
	recipe := seedRecipe(t, token)

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipes/commands/update", token, map[string]any{
		"id":   recipe.ID,
		"name": "braised short rib v2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body model.CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Empty(t, body.Warnings)

	got, err := testDB.GetRecipe(context.Background(), "tenant-update", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, "braised short rib v2", got.Name)
}

func TestCommandUnknown(t *testing.T) {
	token := bearerToken(t, "tenant-unknown")

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipes/commands/explode", token, map[string]any{
		"id": "whatever",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, http.MethodPost, "/v1/kitchen/unknown-things/commands/create", token, map[string]any{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandEntityNotFound(t *testing.T) {
	token := bearerToken(t, "tenant-notfound")

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipes/commands/update", token, map[string]any{
		"id":   "00000000-0000-0000-0000-000000000000",
		"name": "ghost",
	})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestCommandIdempotentReplay(t *testing.T) {
	token := bearerToken(t, "tenant-replay")
	recipe := seedRecipe(t, token)

	payload := map[string]any{
		"recipe_id":  recipe.ID,
		"difficulty": 2,
		"prep_time":  10,
	}

	send := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
		req := httptest.NewRequest(http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "replay-key-1")
		rec := httptest.NewRecorder()
		testHandler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := send()
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	require.JSONEq(t, first.Body.String(), second.Body.String())

	n, err := testDB.CountRecipeVersions(context.Background(), "tenant-replay", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCommandIdempotencyConflict(t *testing.T) {
	token := bearerToken(t, "tenant-conflict")
	recipe := seedRecipe(t, token)

	send := func(difficulty int) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
			"recipe_id":  recipe.ID,
			"difficulty": difficulty,
			"prep_time":  10,
		}))
		req := httptest.NewRequest(http.MethodPost, "/v1/kitchen/recipe-versions/commands/create", &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "conflict-key-1")
		rec := httptest.NewRecorder()
		testHandler.ServeHTTP(rec, req)
		return rec
	}

	first := send(2)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	// Same key, different payload.
	second := send(3)
	require.Equal(t, http.StatusConflict, second.Code, second.Body.String())
}

func TestGetState(t *testing.T) {
	token := bearerToken(t, "tenant-state")
	recipe := seedRecipe(t, token)

	rec := doRequest(t, http.MethodPost, "/v1/kitchen/recipes/commands/activate", token, map[string]any{
		"id": recipe.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, http.MethodGet, "/v1/state/recipes/"+recipe.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state model.ManifestState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, int64(1), state.Version)
	require.Equal(t, "activate", state.LastCommand)
}

func TestListCommands(t *testing.T) {
	token := bearerToken(t, "tenant-list")

	rec := doRequest(t, http.MethodGet, "/v1/commands", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Commands []struct {
			Entity  string `json:"entity"`
			Command string `json:"command"`
		} `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Commands)
}

func TestAuthTokenEndpoint(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/auth/token", "", map[string]any{
		"tenant_id": "tenant-token",
		"user_id":   "user-9",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := testJWT.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "tenant-token", claims.TenantID)
}

func TestSecurityHeaders(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
