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

// CreatePrepListItem inserts a prep list item and returns it.
func (db *DB) CreatePrepListItem(ctx context.Context, it model.PrepListItem) (model.PrepListItem, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO prep_list_items (tenant_id, id, prep_list_id, name, scaled_quantity, station_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.TenantID, it.ID, it.PrepListID, it.Name, it.ScaledQuantity, it.StationID, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return model.PrepListItem{}, fmt.Errorf("storage: create prep list item: %w", err)
	}
	return it, nil
}

// GetPrepListItemForUpdate loads a prep list item under a row-level lock.
func (db *DB) GetPrepListItemForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.PrepListItem, error) {
	var it model.PrepListItem
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, prep_list_id, name, scaled_quantity, station_id, created_at, updated_at
		 FROM prep_list_items WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	).Scan(&it.TenantID, &it.ID, &it.PrepListID, &it.Name, &it.ScaledQuantity, &it.StationID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PrepListItem{}, ErrNotFound
		}
		return model.PrepListItem{}, fmt.Errorf("storage: get prep list item for update: %w", err)
	}
	return it, nil
}

// UpdatePrepListItem persists a prep list item mutation inside the command transaction.
func (db *DB) UpdatePrepListItem(ctx context.Context, tx pgx.Tx, it model.PrepListItem) (model.PrepListItem, error) {
	it.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE prep_list_items
		 SET name = $3, scaled_quantity = $4, station_id = $5, updated_at = $6
		 WHERE tenant_id = $1 AND id = $2`,
		it.TenantID, it.ID, it.Name, it.ScaledQuantity, it.StationID, it.UpdatedAt,
	)
	if err != nil {
		return model.PrepListItem{}, fmt.Errorf("storage: update prep list item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.PrepListItem{}, ErrNotFound
	}
	return it, nil
}

// GetPrepListItem fetches a prep list item without locking.
func (db *DB) GetPrepListItem(ctx context.Context, tenantID, id string) (model.PrepListItem, error) {
	var it model.PrepListItem
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, prep_list_id, name, scaled_quantity, station_id, created_at, updated_at
		 FROM prep_list_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&it.TenantID, &it.ID, &it.PrepListID, &it.Name, &it.ScaledQuantity, &it.StationID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PrepListItem{}, ErrNotFound
		}
		return model.PrepListItem{}, fmt.Errorf("storage: get prep list item: %w", err)
	}
	return it, nil
}
