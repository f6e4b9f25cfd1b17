package manifest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer creates an httptest server that mimics the Manifest API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	// Always register auth endpoint.
	if _, ok := handlers["POST /auth/token"]; !ok {
		mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"token":      "test-token-xyz",
				"expires_at": time.Now().Add(1 * time.Hour).Format(time.RFC3339),
			})
		})
	}

	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:  serverURL,
		TenantID: "tenant-1",
		UserID:   "user-1",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestRunCommandCreates(t *testing.T) {
	var gotKey string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/kitchen/recipe-versions/commands/create": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token-xyz" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
				return
			}
			gotKey = r.Header.Get("Idempotency-Key")

			var input map[string]any
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				t.Errorf("decode input: %v", err)
			}
			if input["recipe_id"] != "rec-1" {
				t.Errorf("expected recipe_id rec-1, got %v", input["recipe_id"])
			}

			writeJSON(w, http.StatusCreated, map[string]any{
				"success": true,
				"result":  map[string]any{"id": "ver-1", "version": 1},
				"warnings": []map[string]any{
					{"index": 3, "guard_id": "warnHighDifficulty", "formatted": "high difficulty recipes need review"},
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.RunCommand(context.Background(), CommandRequest{
		Entity:         "recipe-versions",
		Command:        "create",
		Input:          map[string]any{"recipe_id": "rec-1", "difficulty": 4},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if !resp.Created {
		t.Error("expected Created to be true for a 201")
	}
	if gotKey != "key-1" {
		t.Errorf("expected Idempotency-Key key-1, got %q", gotKey)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].GuardID != "warnHighDifficulty" {
		t.Errorf("unexpected warnings: %+v", resp.Warnings)
	}

	var version RecipeVersion
	if err := json.Unmarshal(resp.Result, &version); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if version.ID != "ver-1" || version.Version != 1 {
		t.Errorf("unexpected result: %+v", version)
	}
}

func TestRunCommandGuardBlocked(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/kitchen/recipe-versions/commands/create": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"success": false,
				"message": "difficulty must be between 1 and 5",
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.RunCommand(context.Background(), CommandRequest{
		Entity:  "recipe-versions",
		Command: "create",
		Input:   map[string]any{"difficulty": 9},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsGuardBlocked(err) {
		t.Errorf("expected IsGuardBlocked, got %v", err)
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Message != "difficulty must be between 1 and 5" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestRunCommandUnknownEntity(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")
	_, err := client.RunCommand(context.Background(), CommandRequest{
		Entity:  "widgets",
		Command: "create",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown entity slug")
	}
}

func TestGetState(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/state/recipes/rec-1": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, ManifestState{
				TenantID:    "tenant-1",
				EntityName:  "Recipe",
				EntityID:    "rec-1",
				Version:     3,
				LastCommand: "activate",
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	state, err := client.GetState(context.Background(), "recipes", "rec-1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Version != 3 {
		t.Errorf("expected version 3, got %d", state.Version)
	}
	if state.LastCommand != "activate" {
		t.Errorf("expected last command activate, got %q", state.LastCommand)
	}
}

func TestListCommands(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/commands": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"commands": []CommandInfo{
					{Entity: "Recipe", Command: "activate"},
					{Entity: "RecipeVersion", Command: "create"},
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	commands, err := client.ListCommands(context.Background())
	if err != nil {
		t.Fatalf("ListCommands failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(commands))
	}
	if commands[1].Entity != "RecipeVersion" || commands[1].Command != "create" {
		t.Errorf("unexpected command: %+v", commands[1])
	}
}

func TestCreateAndGetRecipe(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/kitchen/recipes": func(w http.ResponseWriter, r *http.Request) {
			var rec Recipe
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				t.Errorf("decode recipe: %v", err)
			}
			rec.ID = "rec-1"
			rec.TenantID = "tenant-1"
			writeJSON(w, http.StatusCreated, rec)
		},
		"GET /v1/kitchen/recipes/rec-1": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, Recipe{ID: "rec-1", Name: "Beef Bourguignon"})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	created, err := client.CreateRecipe(context.Background(), Recipe{Name: "Beef Bourguignon", DifficultyLevel: 3})
	if err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}
	if created.ID != "rec-1" {
		t.Errorf("expected id rec-1, got %q", created.ID)
	}

	fetched, err := client.GetRecipe(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}
	if fetched.Name != "Beef Bourguignon" {
		t.Errorf("unexpected name: %q", fetched.Name)
	}
}

func TestTokenAutoRefresh(t *testing.T) {
	var authCount atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			authCount.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"token": "short-lived",
				// Short expiry to force refresh.
				"expires_at": time.Now().Add(1 * time.Second).Format(time.RFC3339),
			})
		},
		"GET /v1/commands": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"commands": []CommandInfo{}})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.ListCommands(context.Background()); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if authCount.Load() != 1 {
		t.Errorf("expected 1 auth call, got %d", authCount.Load())
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := client.ListCommands(context.Background()); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if authCount.Load() != 2 {
		t.Errorf("expected 2 auth calls after expiry, got %d", authCount.Load())
	}
}

func TestErrorTypesMapCorrectly(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, IsNotFound},
		{"unauthorized", http.StatusUnauthorized, IsUnauthorized},
		{"guard blocked", http.StatusUnprocessableEntity, IsGuardBlocked},
		{"conflict", http.StatusConflict, IsConflict},
		{"rate limited", http.StatusTooManyRequests, IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockServer(t, map[string]http.HandlerFunc{
				"GET /v1/commands": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, map[string]any{"success": false, "message": "nope"})
				},
			})
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.ListCommands(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tt.check(err) {
				t.Errorf("predicate did not match error: %v", err)
			}
		})
	}
}

func TestHealthNoAuth(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Error("health check should not send Authorization")
			}
			writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: "1.0"})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("unexpected status: %q", health.Status)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{TenantID: "tenant-1"}); err == nil {
		t.Error("expected an error for missing BaseURL")
	}
	if _, err := NewClient(Config{BaseURL: "http://localhost:8080"}); err == nil {
		t.Error("expected an error for missing TenantID")
	}
}
