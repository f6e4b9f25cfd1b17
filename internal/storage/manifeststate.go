package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/model"
)

// ErrVersionConflict is returned when a manifest-state bump finds the row at
// a different version than the command read — a concurrent command won the
// race. The runtime surfaces this as a stale-state request error.
var ErrVersionConflict = errors.New("storage: manifest state version conflict")

// GetManifestStateVersion reads the current version for an entity instance
// inside the command transaction. Returns 0 when the instance has no state
// row yet (first command against it).
func (db *DB) GetManifestStateVersion(ctx context.Context, tx pgx.Tx, tenantID, entityName, entityID string) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx,
		`SELECT version FROM manifest_state
		 WHERE tenant_id = $1 AND entity_name = $2 AND entity_id = $3`,
		tenantID, entityName, entityID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: get manifest state: %w", err)
	}
	return version, nil
}

// BumpManifestState advances the version for an entity instance by exactly
// one, guarded by the version the command observed when it loaded state.
//
// With the row-level entity lock held this is a formality; it exists as the
// optimistic safety net for paths that read without the lock (step 4 against
// a replica). A bump that finds the row at a different version returns
// ErrVersionConflict and the whole command aborts instead of silently
// overwriting. Rows are created on the first command and never deleted.
func (db *DB) BumpManifestState(
	ctx context.Context,
	tx pgx.Tx,
	tenantID, entityName, entityID string,
	observedVersion int64,
	command string,
) (int64, error) {
	if observedVersion == 0 {
		tag, err := tx.Exec(ctx,
			`INSERT INTO manifest_state (tenant_id, entity_name, entity_id, version, last_command, updated_at)
			 VALUES ($1, $2, $3, 1, $4, now())
			 ON CONFLICT (tenant_id, entity_name, entity_id) DO NOTHING`,
			tenantID, entityName, entityID, command,
		)
		if err != nil {
			return 0, fmt.Errorf("storage: insert manifest state: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// A concurrent command created the row after we read.
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	var newVersion int64
	err := tx.QueryRow(ctx,
		`UPDATE manifest_state
		 SET version = version + 1, last_command = $5, updated_at = now()
		 WHERE tenant_id = $1 AND entity_name = $2 AND entity_id = $3 AND version = $4
		 RETURNING version`,
		tenantID, entityName, entityID, observedVersion, command,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("storage: bump manifest state: %w", err)
	}
	return newVersion, nil
}

// GetManifestState returns the full state row for an entity instance.
func (db *DB) GetManifestState(ctx context.Context, tenantID, entityName, entityID string) (model.ManifestState, error) {
	var st model.ManifestState
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, entity_name, entity_id, version, last_command, updated_at
		 FROM manifest_state
		 WHERE tenant_id = $1 AND entity_name = $2 AND entity_id = $3`,
		tenantID, entityName, entityID,
	).Scan(&st.TenantID, &st.EntityName, &st.EntityID, &st.Version, &st.LastCommand, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ManifestState{}, ErrNotFound
		}
		return model.ManifestState{}, fmt.Errorf("storage: get manifest state row: %w", err)
	}
	return st, nil
}
