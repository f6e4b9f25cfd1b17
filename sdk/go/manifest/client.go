package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Manifest server (e.g. "http://localhost:8080").
	BaseURL string

	// TenantID scopes every request to one tenant.
	TenantID string

	// UserID identifies the caller inside the tenant. Optional.
	UserID string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Manifest command API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	client   *http.Client
	tokenMgr *tokenManager
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL or TenantID is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("manifest: BaseURL is required")
	}
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("manifest: TenantID is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		client:   httpClient,
		tokenMgr: newTokenManager(baseURL, cfg.TenantID, cfg.UserID, httpClient),
	}, nil
}

// entityAreas maps entity slugs onto their URL area prefix.
var entityAreas = map[string]string{
	"recipes":         "kitchen",
	"recipe-versions": "kitchen",
	"dishes":          "kitchen",
	"menus":           "kitchen",
	"prep-tasks":      "kitchen",
	"prep-list-items": "kitchen",
	"shipments":       "logistics",
	"availability":    "staff",
}

// CommandRequest describes one command invocation.
type CommandRequest struct {
	// Entity is the URL slug, e.g. "recipe-versions" or "prep-tasks".
	Entity string

	// Command is the command name, e.g. "create" or "claim".
	Command string

	// Input is the raw command input; fields depend on the command.
	Input map[string]any

	// IdempotencyKey makes retries safe: the server replays the recorded
	// response when the same key and input are seen again. Optional.
	IdempotencyKey string
}

// RunCommand executes a command against an entity instance. Warnings on
// the response are non-blocking guards that matched; a blocking guard
// surfaces as an *Error with status 422 (check with IsGuardBlocked).
func (c *Client) RunCommand(ctx context.Context, req CommandRequest) (*CommandResponse, error) {
	area, ok := entityAreas[req.Entity]
	if !ok {
		return nil, fmt.Errorf("manifest: unknown entity %q", req.Entity)
	}

	encoded, err := json.Marshal(req.Input)
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal command input: %w", err)
	}

	path := fmt.Sprintf("/v1/%s/%s/commands/%s", area, req.Entity, req.Command)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("manifest: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var resp CommandResponse
	status, err := c.doRequest(ctx, httpReq, &resp)
	if err != nil {
		return nil, err
	}
	resp.Created = status == http.StatusCreated
	return &resp, nil
}

// GetState reads the manifest-state row for an entity instance: its
// command version, the last command applied, and when.
func (c *Client) GetState(ctx context.Context, entity, id string) (*ManifestState, error) {
	var state ManifestState
	if err := c.get(ctx, "/v1/state/"+entity+"/"+id, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ListCommands returns every registered (entity, command) pair.
func (c *Client) ListCommands(ctx context.Context) ([]CommandInfo, error) {
	var resp struct {
		Commands []CommandInfo `json:"commands"`
	}
	if err := c.get(ctx, "/v1/commands", &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// CreateRecipe creates a recipe. Name is required.
func (c *Client) CreateRecipe(ctx context.Context, rec Recipe) (*Recipe, error) {
	var created Recipe
	if err := c.post(ctx, "/v1/kitchen/recipes", rec, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetRecipe fetches a recipe by ID.
func (c *Client) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	var rec Recipe
	if err := c.get(ctx, "/v1/kitchen/recipes/"+id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDish creates a dish. Name is required.
func (c *Client) CreateDish(ctx context.Context, d Dish) (*Dish, error) {
	var created Dish
	if err := c.post(ctx, "/v1/kitchen/dishes", d, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetDish fetches a dish by ID.
func (c *Client) GetDish(ctx context.Context, id string) (*Dish, error) {
	var d Dish
	if err := c.get(ctx, "/v1/kitchen/dishes/"+id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateMenu creates a menu. Name is required.
func (c *Client) CreateMenu(ctx context.Context, m Menu) (*Menu, error) {
	var created Menu
	if err := c.post(ctx, "/v1/kitchen/menus", m, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetMenu fetches a menu by ID.
func (c *Client) GetMenu(ctx context.Context, id string) (*Menu, error) {
	var m Menu
	if err := c.get(ctx, "/v1/kitchen/menus/"+id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreatePrepTask creates a prep task. Name is required.
func (c *Client) CreatePrepTask(ctx context.Context, task PrepTask) (*PrepTask, error) {
	var created PrepTask
	if err := c.post(ctx, "/v1/kitchen/prep-tasks", task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPrepTask fetches a prep task by ID.
func (c *Client) GetPrepTask(ctx context.Context, id string) (*PrepTask, error) {
	var task PrepTask
	if err := c.get(ctx, "/v1/kitchen/prep-tasks/"+id, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreatePrepListItem creates a prep list item.
func (c *Client) CreatePrepListItem(ctx context.Context, item PrepListItem) (*PrepListItem, error) {
	var created PrepListItem
	if err := c.post(ctx, "/v1/kitchen/prep-list-items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateShipment creates a shipment.
func (c *Client) CreateShipment(ctx context.Context, s Shipment) (*Shipment, error) {
	var created Shipment
	if err := c.post(ctx, "/v1/logistics/shipments", s, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Health checks server liveness and database connectivity. No auth
// required.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("manifest: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if _, err := handleResponse(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("manifest: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("manifest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.doRequest(ctx, req, dest)
	return err
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("manifest: create request: %w", err)
	}

	_, err = c.doRequest(ctx, req, dest)
	return err
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any) (int, error) {
	token, err := c.tokenMgr.getToken(ctx)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("manifest: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

// errorBody is the server's error response shape.
type errorBody struct {
	Message string `json:"message"`
}

func handleResponse(resp *http.Response, dest any) (int, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("manifest: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var body errorBody
		if err := json.Unmarshal(bodyBytes, &body); err == nil && body.Message != "" {
			apiErr.Message = body.Message
		} else {
			apiErr.Message = string(bodyBytes)
		}
		return resp.StatusCode, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return resp.StatusCode, fmt.Errorf("manifest: decode response: %w", err)
	}
	return resp.StatusCode, nil
}
