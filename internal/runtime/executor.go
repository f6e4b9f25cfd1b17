package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/storage"
	"github.com/angriff36/manifest/internal/telemetry"
)

// errGuardBlocked aborts the command transaction when a BLOCK guard fails.
// Never escapes RunCommand; the failure outcome travels in the closure.
var errGuardBlocked = errors.New("runtime: guard blocked")

// Executor orchestrates command execution. It is stateless apart from its
// dependencies and safe for concurrent use; horizontal scaling relies on the
// database row lock, never on in-process mutual exclusion.
type Executor struct {
	db       *storage.DB
	registry *Registry
	logger   *slog.Logger

	idempotencyTTL time.Duration
	now            func() time.Time

	commandsTotal metric.Int64Counter
	guardBlocks   metric.Int64Counter
	guardWarns    metric.Int64Counter
}

// NewExecutor wires an executor against the storage layer and a populated
// registry. idempotencyTTL is the retention window for stored responses.
func NewExecutor(db *storage.DB, registry *Registry, logger *slog.Logger, idempotencyTTL time.Duration) *Executor {
	meter := telemetry.Meter("manifest/runtime")
	commandsTotal, _ := meter.Int64Counter("manifest.commands.total",
		metric.WithDescription("Commands executed, by entity, command, and outcome"))
	guardBlocks, _ := meter.Int64Counter("manifest.guards.blocked",
		metric.WithDescription("Commands rejected by a BLOCK guard"))
	guardWarns, _ := meter.Int64Counter("manifest.guards.warned",
		metric.WithDescription("WARN guards that fired on successful commands"))

	return &Executor{
		db:             db,
		registry:       registry,
		logger:         logger,
		idempotencyTTL: idempotencyTTL,
		now:            time.Now,
		commandsTotal:  commandsTotal,
		guardBlocks:    guardBlocks,
		guardWarns:     guardWarns,
	}
}

// RunCommand executes one command for a tenant.
//
// Guard BLOCK failures are an expected outcome: they return a CommandResult
// with Success=false and a nil error. Request errors (ErrUnknownCommand,
// ErrStaleState, ErrIdempotencyConflict, storage.ErrNotFound) and internal
// failures come back as the error; the result is then zero.
//
// When idempotencyKey is non-empty, a repeat of the same request replays the
// stored response without re-executing side effects; reusing the key for a
// different request returns ErrIdempotencyConflict.
func (e *Executor) RunCommand(
	ctx context.Context,
	entity, command, tenantID string,
	input map[string]any,
	idempotencyKey string,
) (model.CommandResult, error) {
	var fingerprint string
	if idempotencyKey != "" {
		var err error
		fingerprint, err = Fingerprint(entity, command, input)
		if err != nil {
			return model.CommandResult{}, err
		}

		rec, err := e.db.GetIdempotency(ctx, tenantID, idempotencyKey, fingerprint)
		switch {
		case err == nil:
			var replay model.CommandResult
			if err := json.Unmarshal(rec.Response, &replay); err != nil {
				return model.CommandResult{}, fmt.Errorf("runtime: decode stored response: %w", err)
			}
			replay.Replayed = true
			e.logger.Debug("replayed idempotent command",
				"entity", entity, "command", command, "tenant_id", tenantID)
			return replay, nil
		case errors.Is(err, storage.ErrIdempotencyFingerprintMismatch):
			return model.CommandResult{}, model.ErrIdempotencyConflict
		case errors.Is(err, storage.ErrNotFound):
			// First time this key is seen; fall through and execute.
		default:
			return model.CommandResult{}, err
		}
	}

	def, err := e.registry.Resolve(entity, command)
	if err != nil {
		return model.CommandResult{}, err
	}

	var (
		result    model.CommandResult
		blocked   *model.GuardFailure
		numEvents int
	)

	txErr := e.db.InTx(ctx, func(tx pgx.Tx) error {
		// Each retry attempt starts from a clean slate.
		result = model.CommandResult{}
		blocked = nil
		numEvents = 0
		now := e.now().UTC()

		var current any
		if def.Load != nil {
			current, err = def.Load(ctx, tx, e.db, tenantID, input)
			if err != nil {
				return err
			}
		}

		var observedVersion int64
		if def.TargetID != nil {
			if id := def.TargetID(input); id != "" {
				observedVersion, err = e.db.GetManifestStateVersion(ctx, tx, tenantID, entity, id)
				if err != nil {
					return err
				}
			}
		}

		proposed, err := def.Merge(current, input)
		if err != nil {
			return err
		}

		outcome := guard.Evaluate(def.Guards, guard.Context{
			Current:  current,
			Proposed: proposed,
			Input:    input,
			Now:      now,
		})
		if !outcome.Passed {
			blocked = outcome.Failure
			return errGuardBlocked
		}

		persisted, err := def.Apply(ctx, tx, e.db, tenantID, proposed)
		if err != nil {
			return err
		}

		if _, err := e.db.BumpManifestState(ctx, tx, tenantID, entity, persisted.ID, observedVersion, command); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				return model.ErrStaleState
			}
			return err
		}

		var events []model.DomainEvent
		if def.EventsFor != nil {
			events = def.EventsFor(persisted)
			for i := range events {
				events[i].TenantID = tenantID
				events[i].AggregateID = persisted.ID
				events[i].OccurredAt = now
			}
			if err := e.db.WriteOutboxEvents(ctx, tx, events); err != nil {
				return err
			}
			numEvents = len(events)
		}

		raw, err := json.Marshal(persisted.Value)
		if err != nil {
			return fmt.Errorf("runtime: encode result: %w", err)
		}
		result = model.CommandResult{
			Success:       true,
			Result:        raw,
			EmittedEvents: events,
			Warnings:      outcome.Warnings,
			Created:       def.Kind == KindCreate,
		}

		if idempotencyKey != "" {
			response, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("runtime: encode stored response: %w", err)
			}
			return e.db.PutIdempotency(ctx, tx, tenantID, idempotencyKey, fingerprint, response, e.idempotencyTTL)
		}
		return nil
	})

	attrs := metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("command", command),
	)

	if errors.Is(txErr, errGuardBlocked) {
		result = model.CommandResult{Success: false, GuardFailure: blocked}
		e.guardBlocks.Add(ctx, 1, attrs)
		e.commandsTotal.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("outcome", "blocked")))

		// The transaction rolled back; record the key against the failure
		// response on the pool so a retry with the same key replays the same
		// rejection instead of re-validating.
		if idempotencyKey != "" {
			response, err := json.Marshal(result)
			if err != nil {
				return model.CommandResult{}, fmt.Errorf("runtime: encode stored response: %w", err)
			}
			if err := e.db.PutIdempotency(ctx, e.db.Pool(), tenantID, idempotencyKey, fingerprint, response, e.idempotencyTTL); err != nil {
				e.logger.Error("failed to record idempotency for guard failure",
					"entity", entity, "command", command, "error", err)
			}
		}
		return result, nil
	}
	if txErr != nil {
		e.commandsTotal.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("outcome", "error")))
		return model.CommandResult{}, txErr
	}

	e.commandsTotal.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("outcome", "success")))
	if n := len(result.Warnings); n > 0 {
		e.guardWarns.Add(ctx, int64(n), attrs)
	}

	if numEvents > 0 {
		// Wake the publisher early. Advisory: delivery is driven by the
		// outbox table, so a failed nudge only costs one poll interval.
		if err := e.db.Notify(ctx, storage.ChannelOutbox, ""); err != nil {
			e.logger.Debug("outbox notify failed", "error", err)
		}
	}

	e.logger.Info("command executed",
		"entity", entity,
		"command", command,
		"tenant_id", tenantID,
		"warnings", len(result.Warnings),
		"events", numEvents,
	)
	return result, nil
}
