package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/model"
)

// CreateAvailability inserts an availability window and returns it.
func (db *DB) CreateAvailability(ctx context.Context, a model.Availability) (model.Availability, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO availability (tenant_id, id, employee_id, effective_date, start_minute, end_minute, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.TenantID, a.ID, a.EmployeeID, a.EffectiveDate, a.StartMinute, a.EndMinute, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Availability{}, fmt.Errorf("storage: create availability: %w", err)
	}
	return a, nil
}

// InsertAvailability inserts an availability window inside the command
// transaction. Used by the set command when no window exists yet.
func (db *DB) InsertAvailability(ctx context.Context, tx pgx.Tx, a model.Availability) (model.Availability, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := tx.Exec(ctx,
		`INSERT INTO availability (tenant_id, id, employee_id, effective_date, start_minute, end_minute, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.TenantID, a.ID, a.EmployeeID, a.EffectiveDate, a.StartMinute, a.EndMinute, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Availability{}, fmt.Errorf("storage: insert availability: %w", err)
	}
	return a, nil
}

// GetAvailabilityForUpdate loads an availability window under a row-level lock.
func (db *DB) GetAvailabilityForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.Availability, error) {
	var a model.Availability
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, employee_id, effective_date, start_minute, end_minute, created_at, updated_at
		 FROM availability WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	).Scan(&a.TenantID, &a.ID, &a.EmployeeID, &a.EffectiveDate, &a.StartMinute, &a.EndMinute, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Availability{}, ErrNotFound
		}
		return model.Availability{}, fmt.Errorf("storage: get availability for update: %w", err)
	}
	return a, nil
}

// UpdateAvailability persists an availability mutation inside the command transaction.
func (db *DB) UpdateAvailability(ctx context.Context, tx pgx.Tx, a model.Availability) (model.Availability, error) {
	a.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE availability
		 SET employee_id = $3, effective_date = $4, start_minute = $5, end_minute = $6, updated_at = $7
		 WHERE tenant_id = $1 AND id = $2`,
		a.TenantID, a.ID, a.EmployeeID, a.EffectiveDate, a.StartMinute, a.EndMinute, a.UpdatedAt,
	)
	if err != nil {
		return model.Availability{}, fmt.Errorf("storage: update availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Availability{}, ErrNotFound
	}
	return a, nil
}

// GetAvailability fetches an availability window without locking.
func (db *DB) GetAvailability(ctx context.Context, tenantID, id string) (model.Availability, error) {
	var a model.Availability
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, employee_id, effective_date, start_minute, end_minute, created_at, updated_at
		 FROM availability WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&a.TenantID, &a.ID, &a.EmployeeID, &a.EffectiveDate, &a.StartMinute, &a.EndMinute, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Availability{}, ErrNotFound
		}
		return model.Availability{}, fmt.Errorf("storage: get availability: %w", err)
	}
	return a, nil
}
