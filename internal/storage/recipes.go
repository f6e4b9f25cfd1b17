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

// CreateRecipe inserts a recipe header and returns it. Used by seed paths
// and tests; command mutations go through the runtime.
func (db *DB) CreateRecipe(ctx context.Context, r model.Recipe) (model.Recipe, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO recipes (tenant_id, id, name, yield_quantity, yield_unit_id, difficulty_level, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.TenantID, r.ID, r.Name, r.YieldQuantity, r.YieldUnitID, r.DifficultyLevel, r.IsActive, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("storage: create recipe: %w", err)
	}
	return r, nil
}

// GetRecipeForUpdate loads a recipe under a row-level lock, serializing
// concurrent commands against the same instance.
func (db *DB) GetRecipeForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.Recipe, error) {
	var r model.Recipe
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, name, yield_quantity, yield_unit_id, difficulty_level, is_active, created_at, updated_at, deleted_at
		 FROM recipes
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		 FOR UPDATE`,
		tenantID, id,
	).Scan(&r.TenantID, &r.ID, &r.Name, &r.YieldQuantity, &r.YieldUnitID, &r.DifficultyLevel, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Recipe{}, ErrNotFound
		}
		return model.Recipe{}, fmt.Errorf("storage: get recipe for update: %w", err)
	}
	return r, nil
}

// UpdateRecipe persists a recipe mutation inside the command transaction.
func (db *DB) UpdateRecipe(ctx context.Context, tx pgx.Tx, r model.Recipe) (model.Recipe, error) {
	r.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE recipes
		 SET name = $3, yield_quantity = $4, yield_unit_id = $5, difficulty_level = $6, is_active = $7, updated_at = $8
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		r.TenantID, r.ID, r.Name, r.YieldQuantity, r.YieldUnitID, r.DifficultyLevel, r.IsActive, r.UpdatedAt,
	)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("storage: update recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Recipe{}, ErrNotFound
	}
	return r, nil
}

// GetRecipe fetches a recipe without locking.
func (db *DB) GetRecipe(ctx context.Context, tenantID, id string) (model.Recipe, error) {
	var r model.Recipe
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, name, yield_quantity, yield_unit_id, difficulty_level, is_active, created_at, updated_at, deleted_at
		 FROM recipes
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id,
	).Scan(&r.TenantID, &r.ID, &r.Name, &r.YieldQuantity, &r.YieldUnitID, &r.DifficultyLevel, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Recipe{}, ErrNotFound
		}
		return model.Recipe{}, fmt.Errorf("storage: get recipe: %w", err)
	}
	return r, nil
}

// NextRecipeVersionNumber returns 1 + the highest existing version for a
// recipe, read inside the command transaction.
func (db *DB) NextRecipeVersionNumber(ctx context.Context, tx pgx.Tx, tenantID, recipeID string) (int, error) {
	var next int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM recipe_versions
		 WHERE tenant_id = $1 AND recipe_id = $2`,
		tenantID, recipeID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("storage: next recipe version: %w", err)
	}
	return next, nil
}

// InsertRecipeVersion persists a new recipe version inside the command transaction.
func (db *DB) InsertRecipeVersion(ctx context.Context, tx pgx.Tx, v model.RecipeVersion) (model.RecipeVersion, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()

	_, err := tx.Exec(ctx,
		`INSERT INTO recipe_versions (tenant_id, id, recipe_id, version, yield_qty, yield_unit,
		 prep_time, cook_time, rest_time, difficulty, instructions_text, notes_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		v.TenantID, v.ID, v.RecipeID, v.Version, v.YieldQty, v.YieldUnit,
		v.PrepTime, v.CookTime, v.RestTime, v.Difficulty, v.InstructionsText, v.NotesText, v.CreatedAt,
	)
	if err != nil {
		return model.RecipeVersion{}, fmt.Errorf("storage: insert recipe version: %w", err)
	}
	return v, nil
}

// CountRecipeVersions returns the number of versions for a recipe.
func (db *DB) CountRecipeVersions(ctx context.Context, tenantID, recipeID string) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recipe_versions WHERE tenant_id = $1 AND recipe_id = $2`,
		tenantID, recipeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count recipe versions: %w", err)
	}
	return count, nil
}
