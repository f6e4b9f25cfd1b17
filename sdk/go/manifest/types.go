package manifest

import (
	"encoding/json"
	"time"
)

// GuardWarning is a non-blocking guard that matched during command
// execution. The command still applied.
type GuardWarning struct {
	Index     int    `json:"index"`
	GuardID   string `json:"guard_id"`
	Formatted string `json:"formatted"`
}

// CommandResponse is the body of a successful command request.
type CommandResponse struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Warnings []GuardWarning  `json:"warnings,omitempty"`

	// Created reports whether the server answered 201, meaning the
	// command created a new entity instance.
	Created bool `json:"-"`
}

// ManifestState is the per-instance command version row. Version
// increments once per applied command.
type ManifestState struct {
	TenantID    string    `json:"tenant_id"`
	EntityName  string    `json:"entity_name"`
	EntityID    string    `json:"entity_id"`
	Version     int64     `json:"version"`
	LastCommand string    `json:"last_command"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommandInfo names one registered (entity, command) pair.
type CommandInfo struct {
	Entity  string `json:"entity"`
	Command string `json:"command"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Recipe is a kitchen recipe.
type Recipe struct {
	ID              string     `json:"id,omitempty"`
	TenantID        string     `json:"tenant_id,omitempty"`
	Name            string     `json:"name"`
	YieldQuantity   float64    `json:"yield_quantity"`
	YieldUnitID     int        `json:"yield_unit_id"`
	DifficultyLevel int        `json:"difficulty_level"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// RecipeVersion is an immutable snapshot of a recipe's method.
type RecipeVersion struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	RecipeID         string    `json:"recipe_id"`
	Version          int       `json:"version"`
	YieldQty         float64   `json:"yield_qty"`
	YieldUnit        int       `json:"yield_unit"`
	PrepTime         int       `json:"prep_time"`
	CookTime         int       `json:"cook_time"`
	RestTime         int       `json:"rest_time"`
	Difficulty       int       `json:"difficulty"`
	InstructionsText string    `json:"instructions_text"`
	NotesText        string    `json:"notes_text"`
	CreatedAt        time.Time `json:"created_at"`
}

// Dish is a sellable item built from a recipe.
type Dish struct {
	ID              string    `json:"id,omitempty"`
	TenantID        string    `json:"tenant_id,omitempty"`
	RecipeID        string    `json:"recipe_id,omitempty"`
	Name            string    `json:"name"`
	PricePerPerson  float64   `json:"price_per_person"`
	CostPerPerson   float64   `json:"cost_per_person"`
	MinPrepLeadDays int       `json:"min_prep_lead_days"`
	MaxPrepLeadDays int       `json:"max_prep_lead_days"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Menu groups dishes for service.
type Menu struct {
	ID        string    `json:"id,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrepTask is a unit of kitchen prep work with a claim lifecycle.
type PrepTask struct {
	ID                string    `json:"id,omitempty"`
	TenantID          string    `json:"tenant_id,omitempty"`
	Name              string    `json:"name"`
	Status            string    `json:"status,omitempty"`
	AssigneeID        string    `json:"assignee_id,omitempty"`
	StationID         string    `json:"station_id,omitempty"`
	QuantityCompleted float64   `json:"quantity_completed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PrepListItem is a scaled line on a prep list.
type PrepListItem struct {
	ID             string    `json:"id,omitempty"`
	TenantID       string    `json:"tenant_id,omitempty"`
	PrepListID     string    `json:"prep_list_id"`
	Name           string    `json:"name"`
	ScaledQuantity float64   `json:"scaled_quantity"`
	StationID      string    `json:"station_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Shipment is an inbound delivery against a purchase order.
type Shipment struct {
	ID               string     `json:"id,omitempty"`
	TenantID         string     `json:"tenant_id,omitempty"`
	SupplierName     string     `json:"supplier_name"`
	ExpectedQuantity float64    `json:"expected_quantity"`
	ReceivedQuantity float64    `json:"received_quantity"`
	ReceivedAt       *time.Time `json:"received_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
