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

// CreatePrepTask inserts a prep task and returns it.
func (db *DB) CreatePrepTask(ctx context.Context, t model.PrepTask) (model.PrepTask, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO prep_tasks (tenant_id, id, name, status, assignee_id, station_id, quantity_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.TenantID, t.ID, t.Name, t.Status, t.AssigneeID, t.StationID, t.QuantityCompleted, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.PrepTask{}, fmt.Errorf("storage: create prep task: %w", err)
	}
	return t, nil
}

// GetPrepTaskForUpdate loads a prep task under a row-level lock.
func (db *DB) GetPrepTaskForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.PrepTask, error) {
	var t model.PrepTask
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, name, status, assignee_id, station_id, quantity_completed, created_at, updated_at
		 FROM prep_tasks WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	).Scan(&t.TenantID, &t.ID, &t.Name, &t.Status, &t.AssigneeID, &t.StationID, &t.QuantityCompleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PrepTask{}, ErrNotFound
		}
		return model.PrepTask{}, fmt.Errorf("storage: get prep task for update: %w", err)
	}
	return t, nil
}

// UpdatePrepTask persists a prep task mutation inside the command transaction.
func (db *DB) UpdatePrepTask(ctx context.Context, tx pgx.Tx, t model.PrepTask) (model.PrepTask, error) {
	t.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE prep_tasks
		 SET name = $3, status = $4, assignee_id = $5, station_id = $6, quantity_completed = $7, updated_at = $8
		 WHERE tenant_id = $1 AND id = $2`,
		t.TenantID, t.ID, t.Name, t.Status, t.AssigneeID, t.StationID, t.QuantityCompleted, t.UpdatedAt,
	)
	if err != nil {
		return model.PrepTask{}, fmt.Errorf("storage: update prep task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.PrepTask{}, ErrNotFound
	}
	return t, nil
}

// GetPrepTask fetches a prep task without locking.
func (db *DB) GetPrepTask(ctx context.Context, tenantID, id string) (model.PrepTask, error) {
	var t model.PrepTask
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, name, status, assignee_id, station_id, quantity_completed, created_at, updated_at
		 FROM prep_tasks WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&t.TenantID, &t.ID, &t.Name, &t.Status, &t.AssigneeID, &t.StationID, &t.QuantityCompleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PrepTask{}, ErrNotFound
		}
		return model.PrepTask{}, fmt.Errorf("storage: get prep task: %w", err)
	}
	return t, nil
}
