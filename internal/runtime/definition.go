package runtime

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/storage"
)

// Kind distinguishes commands that insert a new entity instance from commands
// that mutate an existing one. The HTTP adapter maps create to 201.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
)

// Persisted is what Apply returns: the stored entity plus the identifier the
// executor uses for manifest-state bookkeeping and event aggregation.
type Persisted struct {
	ID    string
	Value any
}

// Definition describes one command: its ordered guard list plus the functions
// the executor calls at each step. Definitions are plain values composed by
// aggregation; they are registered once and never mutated.
//
// Load, Merge, and Apply run inside the command transaction and must not call
// out to the network. Guards are pure and run against the states those
// functions produce.
type Definition struct {
	Entity  string
	Command string
	Kind    Kind

	// Guards are evaluated in declaration order; order doubles as priority
	// among competing hard-stop conditions.
	Guards []guard.Guard

	// TargetID extracts the entity instance id from the raw input for
	// update-style commands. Returns "" for create-style commands, where the
	// id does not exist until Apply runs.
	TargetID func(input map[string]any) string

	// Load fetches current state under a tenant-scoped row lock. Nil for
	// create-style commands; the executor then passes nil current state.
	Load func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error)

	// Merge combines current state and raw input into the proposed state the
	// guards evaluate and Apply persists.
	Merge func(current any, input map[string]any) (any, error)

	// Apply performs the insert or update against the entity's table.
	Apply func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (Persisted, error)

	// EventsFor derives the domain events a successful command emits. The
	// executor stamps TenantID and OccurredAt before writing them to the
	// outbox.
	EventsFor func(p Persisted) []model.DomainEvent
}
