package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrIdempotencyFingerprintMismatch is returned when the same idempotency
// key is reused with a different command fingerprint for the same tenant —
// the client attached one key to two different intents.
var ErrIdempotencyFingerprintMismatch = errors.New("storage: idempotency key reused with different fingerprint")

// IdempotencyRecord is a stored command response keyed by (tenant, key).
type IdempotencyRecord struct {
	Fingerprint string
	Response    json.RawMessage
	ExpiresAt   time.Time
}

// GetIdempotency looks up a stored response for (tenantID, key).
//
// Returns ErrNotFound when no live record exists; expired records are
// treated as absent so key reuse after the retention window behaves as a
// fresh request. Returns ErrIdempotencyFingerprintMismatch when a live
// record exists under a different fingerprint.
func (db *DB) GetIdempotency(ctx context.Context, tenantID, key, fingerprint string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := db.pool.QueryRow(ctx,
		`SELECT fingerprint, response, expires_at
		 FROM idempotency_keys
		 WHERE tenant_id = $1 AND key = $2 AND expires_at > now()`,
		tenantID, key,
	).Scan(&rec.Fingerprint, &rec.Response, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IdempotencyRecord{}, ErrNotFound
		}
		return IdempotencyRecord{}, fmt.Errorf("storage: get idempotency: %w", err)
	}

	if rec.Fingerprint != fingerprint {
		return IdempotencyRecord{}, ErrIdempotencyFingerprintMismatch
	}
	return rec, nil
}

// PutIdempotency upserts the stored response for (tenantID, key).
//
// It accepts a Querier so the runtime can call it inside the command
// transaction (stored response and mutation commit together or not at all)
// or on the pool when recording a guard-failure response after rollback.
func (db *DB) PutIdempotency(
	ctx context.Context,
	q Querier,
	tenantID, key, fingerprint string,
	response json.RawMessage,
	ttl time.Duration,
) error {
	_, err := q.Exec(ctx,
		`INSERT INTO idempotency_keys (tenant_id, key, fingerprint, response, expires_at)
		 VALUES ($1, $2, $3, $4, now() + ($5 * interval '1 microsecond'))
		 ON CONFLICT (tenant_id, key)
		 DO UPDATE SET fingerprint = EXCLUDED.fingerprint,
		               response = EXCLUDED.response,
		               expires_at = EXCLUDED.expires_at
		 WHERE idempotency_keys.expires_at <= now()`,
		tenantID, key, fingerprint, response, ttl.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("storage: put idempotency: %w", err)
	}
	return nil
}

// CleanupIdempotencyKeys removes records past their retention window.
// Intended for a periodic background job.
func (db *DB) CleanupIdempotencyKeys(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
