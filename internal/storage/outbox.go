package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/model"
)

// WriteOutboxEvents appends domain events to the outbox inside the caller's
// transaction. The rows commit atomically with the originating mutation;
// published_at stays null until the publisher confirms delivery.
func (db *DB) WriteOutboxEvents(ctx context.Context, tx pgx.Tx, events []model.DomainEvent) error {
	for _, ev := range events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO outbox_events (tenant_id, event_type, aggregate_id, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			ev.TenantID, ev.Type, ev.AggregateID, ev.Payload, ev.OccurredAt,
		); err != nil {
			return fmt.Errorf("storage: write outbox event %s: %w", ev.Type, err)
		}
	}
	return nil
}

// ClaimUnpublished selects and locks up to batchSize unpublished outbox rows
// for the calling publisher, extending a short lease so a second publisher
// instance skips them (FOR UPDATE SKIP LOCKED + locked_until). Rows whose
// lease expired are reclaimed.
func (db *DB) ClaimUnpublished(ctx context.Context, batchSize int, lease time.Duration) ([]model.OutboxEvent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin outbox claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id, tenant_id, event_type, aggregate_id, payload, created_at
		 FROM outbox_events
		 WHERE published_at IS NULL
		   AND (locked_until IS NULL OR locked_until < now())
		 ORDER BY id ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: select unpublished: %w", err)
	}

	events, err := scanOutboxEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if _, err := tx.Exec(ctx,
		`UPDATE outbox_events
		 SET locked_until = now() + ($1 * interval '1 microsecond')
		 WHERE id = ANY($2)`,
		lease.Microseconds(), ids,
	); err != nil {
		return nil, fmt.Errorf("storage: lease outbox events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("storage: commit outbox claim: %w", err)
	}
	return events, nil
}

// MarkPublished records successful delivery for the given outbox rows.
// published_at is terminal: rows transition from unpublished to published
// exactly once and are never unmarked.
func (db *DB) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE outbox_events
		 SET published_at = now(), locked_until = NULL
		 WHERE id = ANY($1) AND published_at IS NULL`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("storage: mark published: %w", err)
	}
	return nil
}

// ReleaseOutboxEvents drops the lease on failed rows and applies exponential
// backoff so a misbehaving sink cannot spin the publisher: the next attempt
// waits 2^attempts seconds, capped at 5 minutes.
func (db *DB) ReleaseOutboxEvents(ctx context.Context, ids []int64, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE outbox_events
		 SET attempts = attempts + 1,
		     last_error = $1,
		     locked_until = now() + LEAST(POWER(2, attempts + 1), 300) * interval '1 second'
		 WHERE id = ANY($2)`,
		errMsg, ids,
	)
	if err != nil {
		return fmt.Errorf("storage: release outbox events: %w", err)
	}
	return nil
}

// UnpublishedOutboxCount returns the number of rows awaiting delivery.
// Used by the publisher's depth gauge.
func (db *DB) UnpublishedOutboxCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count unpublished: %w", err)
	}
	return count, nil
}

// CleanupPublishedOutbox deletes published rows older than the retention
// window. Intended for a periodic background job.
func (db *DB) CleanupPublishedOutbox(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM outbox_events
		 WHERE published_at IS NOT NULL
		   AND published_at < now() - ($1 * interval '1 microsecond')`,
		retention.Microseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cleanup published outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutboxEvents(rows pgx.Rows) ([]model.OutboxEvent, error) {
	defer rows.Close()
	var events []model.OutboxEvent
	for rows.Next() {
		var ev model.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.EventType, &ev.AggregateID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
