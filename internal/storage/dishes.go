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

// CreateDish inserts a dish and returns it.
func (db *DB) CreateDish(ctx context.Context, d model.Dish) (model.Dish, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO dishes (tenant_id, id, recipe_id, name, price_per_person, cost_per_person,
		 min_prep_lead_days, max_prep_lead_days, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.TenantID, d.ID, d.RecipeID, d.Name, d.PricePerPerson, d.CostPerPerson,
		d.MinPrepLeadDays, d.MaxPrepLeadDays, d.IsActive, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return model.Dish{}, fmt.Errorf("storage: create dish: %w", err)
	}
	return d, nil
}

// GetDishForUpdate loads a dish under a row-level lock.
func (db *DB) GetDishForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.Dish, error) {
	var d model.Dish
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, recipe_id, name, price_per_person, cost_per_person,
		 min_prep_lead_days, max_prep_lead_days, is_active, created_at, updated_at
		 FROM dishes
		 WHERE tenant_id = $1 AND id = $2
		 FOR UPDATE`,
		tenantID, id,
	).Scan(&d.TenantID, &d.ID, &d.RecipeID, &d.Name, &d.PricePerPerson, &d.CostPerPerson,
		&d.MinPrepLeadDays, &d.MaxPrepLeadDays, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Dish{}, ErrNotFound
		}
		return model.Dish{}, fmt.Errorf("storage: get dish for update: %w", err)
	}
	return d, nil
}

// UpdateDish persists a dish mutation inside the command transaction.
func (db *DB) UpdateDish(ctx context.Context, tx pgx.Tx, d model.Dish) (model.Dish, error) {
	d.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE dishes
		 SET name = $3, price_per_person = $4, cost_per_person = $5,
		     min_prep_lead_days = $6, max_prep_lead_days = $7, is_active = $8, updated_at = $9
		 WHERE tenant_id = $1 AND id = $2`,
		d.TenantID, d.ID, d.Name, d.PricePerPerson, d.CostPerPerson,
		d.MinPrepLeadDays, d.MaxPrepLeadDays, d.IsActive, d.UpdatedAt,
	)
	if err != nil {
		return model.Dish{}, fmt.Errorf("storage: update dish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Dish{}, ErrNotFound
	}
	return d, nil
}

// GetDish fetches a dish without locking.
func (db *DB) GetDish(ctx context.Context, tenantID, id string) (model.Dish, error) {
	var d model.Dish
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, recipe_id, name, price_per_person, cost_per_person,
		 min_prep_lead_days, max_prep_lead_days, is_active, created_at, updated_at
		 FROM dishes
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&d.TenantID, &d.ID, &d.RecipeID, &d.Name, &d.PricePerPerson, &d.CostPerPerson,
		&d.MinPrepLeadDays, &d.MaxPrepLeadDays, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Dish{}, ErrNotFound
		}
		return model.Dish{}, fmt.Errorf("storage: get dish: %w", err)
	}
	return d, nil
}
