package model

import "time"

// Entity names as registered with the command runtime. The HTTP adapter maps
// URL segments onto these, so they are part of the external contract.
const (
	EntityRecipe        = "Recipe"
	EntityRecipeVersion = "RecipeVersion"
	EntityDish          = "Dish"
	EntityMenu          = "Menu"
	EntityPrepTask      = "PrepTask"
	EntityPrepListItem  = "PrepListItem"
	EntityShipment      = "Shipment"
	EntityAvailability  = "Availability"
)

// PrepTaskStatus is the lifecycle state of a kitchen prep task.
type PrepTaskStatus string

const (
	TaskPending    PrepTaskStatus = "pending"
	TaskClaimed    PrepTaskStatus = "claimed"
	TaskInProgress PrepTaskStatus = "in_progress"
	TaskCompleted  PrepTaskStatus = "completed"
)

// Recipe is a kitchen recipe header. Versions carry the actual instructions.
type Recipe struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	Name            string     `json:"name"`
	YieldQuantity   float64    `json:"yield_quantity"`
	YieldUnitID     int        `json:"yield_unit_id"`
	DifficultyLevel int        `json:"difficulty_level"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// RecipeVersion is an immutable snapshot of a recipe's method. Times are in
// minutes; difficulty is a 1-5 scale.
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

// TotalTime is the full wall-clock duration of the recipe in minutes.
func (v RecipeVersion) TotalTime() int {
	return v.PrepTime + v.CookTime + v.RestTime
}

// Dish is a sellable item backed by a recipe.
type Dish struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	RecipeID        string    `json:"recipe_id"`
	Name            string    `json:"name"`
	PricePerPerson  float64   `json:"price_per_person"`
	CostPerPerson   float64   `json:"cost_per_person"`
	MinPrepLeadDays int       `json:"min_prep_lead_days"`
	MaxPrepLeadDays int       `json:"max_prep_lead_days"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Menu groups dishes for an event or a service period.
type Menu struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrepTask is a unit of kitchen production work on the realtime board.
type PrepTask struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	Name              string         `json:"name"`
	Status            PrepTaskStatus `json:"status"`
	AssigneeID        string         `json:"assignee_id,omitempty"`
	StationID         string         `json:"station_id,omitempty"`
	QuantityCompleted float64        `json:"quantity_completed"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// PrepListItem is a scaled line on a prep list.
type PrepListItem struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	PrepListID     string    `json:"prep_list_id"`
	Name           string    `json:"name"`
	ScaledQuantity float64   `json:"scaled_quantity"`
	StationID      string    `json:"station_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Shipment is an inbound delivery against a purchase order.
type Shipment struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	SupplierName     string     `json:"supplier_name"`
	ExpectedQuantity float64    `json:"expected_quantity"`
	ReceivedQuantity float64    `json:"received_quantity"`
	ReceivedAt       *time.Time `json:"received_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Availability is an employee's declared availability window.
type Availability struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	EmployeeID    string    `json:"employee_id"`
	EffectiveDate time.Time `json:"effective_date"`
	StartMinute   int       `json:"start_minute"`
	EndMinute     int       `json:"end_minute"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
