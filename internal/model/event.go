package model

import "time"

// Outbox event types, dot-form: <domain>.<aggregate>.<pastTenseAction>.
const (
	EventRecipeUpdated     = "kitchen.recipe.updated"
	EventRecipeActivated   = "kitchen.recipe.activated"
	EventRecipeDeactivated = "kitchen.recipe.deactivated"

	EventRecipeVersionCreated = "kitchen.recipeVersion.created"

	EventDishPricingUpdated  = "kitchen.dish.pricingUpdated"
	EventDishLeadTimeUpdated = "kitchen.dish.leadTimeUpdated"

	EventMenuUpdated     = "kitchen.menu.updated"
	EventMenuActivated   = "kitchen.menu.activated"
	EventMenuDeactivated = "kitchen.menu.deactivated"

	EventTaskClaimed   = "kitchen.task.claimed"
	EventTaskStarted   = "kitchen.task.started"
	EventTaskCompleted = "kitchen.task.completed"

	EventPrepListItemQuantityUpdated = "kitchen.prepListItem.quantityUpdated"
	EventPrepListItemStationUpdated  = "kitchen.prepListItem.stationUpdated"

	EventShipmentReceived = "logistics.shipment.received"

	EventAvailabilitySet = "staff.availability.set"
)

// OutboxEvent is a persisted row in the outbox_events table. Rows with a
// null PublishedAt were committed atomically with their originating mutation
// and are guaranteed at-least-once delivery; downstream consumers dedupe on ID.
type OutboxEvent struct {
	ID          int64          `json:"id"`
	TenantID    string         `json:"tenant_id"`
	EventType   string         `json:"event_type"`
	AggregateID string         `json:"aggregate_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// ManifestState is the per-entity-instance version record used to detect
// lost updates across concurrent commands. Version increments by exactly one
// per successful command; rows are never deleted.
type ManifestState struct {
	TenantID    string    `json:"tenant_id"`
	EntityName  string    `json:"entity_name"`
	EntityID    string    `json:"entity_id"`
	Version     int64     `json:"version"`
	LastCommand string    `json:"last_command"`
	UpdatedAt   time.Time `json:"updated_at"`
}
