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

// CreateMenu inserts a menu and returns it.
func (db *DB) CreateMenu(ctx context.Context, m model.Menu) (model.Menu, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO menus (tenant_id, id, name, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.TenantID, m.ID, m.Name, m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return model.Menu{}, fmt.Errorf("storage: create menu: %w", err)
	}
	return m, nil
}

// GetMenuForUpdate loads a menu under a row-level lock.
func (db *DB) GetMenuForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.Menu, error) {
	var m model.Menu
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, name, is_active, created_at, updated_at
		 FROM menus WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	).Scan(&m.TenantID, &m.ID, &m.Name, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Menu{}, ErrNotFound
		}
		return model.Menu{}, fmt.Errorf("storage: get menu for update: %w", err)
	}
	return m, nil
}

// UpdateMenu persists a menu mutation inside the command transaction.
func (db *DB) UpdateMenu(ctx context.Context, tx pgx.Tx, m model.Menu) (model.Menu, error) {
	m.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE menus SET name = $3, is_active = $4, updated_at = $5
		 WHERE tenant_id = $1 AND id = $2`,
		m.TenantID, m.ID, m.Name, m.IsActive, m.UpdatedAt,
	)
	if err != nil {
		return model.Menu{}, fmt.Errorf("storage: update menu: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Menu{}, ErrNotFound
	}
	return m, nil
}

// GetMenu fetches a menu without locking.
func (db *DB) GetMenu(ctx context.Context, tenantID, id string) (model.Menu, error) {
	var m model.Menu
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, name, is_active, created_at, updated_at
		 FROM menus WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&m.TenantID, &m.ID, &m.Name, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Menu{}, ErrNotFound
		}
		return model.Menu{}, fmt.Errorf("storage: get menu: %w", err)
	}
	return m, nil
}
