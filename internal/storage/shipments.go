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

// CreateShipment inserts a shipment and returns it.
func (db *DB) CreateShipment(ctx context.Context, s model.Shipment) (model.Shipment, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO shipments (tenant_id, id, supplier_name, expected_quantity, received_quantity, received_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.TenantID, s.ID, s.SupplierName, s.ExpectedQuantity, s.ReceivedQuantity, s.ReceivedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return model.Shipment{}, fmt.Errorf("storage: create shipment: %w", err)
	}
	return s, nil
}

// GetShipmentForUpdate loads a shipment under a row-level lock.
func (db *DB) GetShipmentForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (model.Shipment, error) {
	var s model.Shipment
	err := tx.QueryRow(ctx,
		`SELECT tenant_id, id, supplier_name, expected_quantity, received_quantity, received_at, created_at, updated_at
		 FROM shipments WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	).Scan(&s.TenantID, &s.ID, &s.SupplierName, &s.ExpectedQuantity, &s.ReceivedQuantity, &s.ReceivedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Shipment{}, ErrNotFound
		}
		return model.Shipment{}, fmt.Errorf("storage: get shipment for update: %w", err)
	}
	return s, nil
}

// UpdateShipment persists a shipment mutation inside the command transaction.
func (db *DB) UpdateShipment(ctx context.Context, tx pgx.Tx, s model.Shipment) (model.Shipment, error) {
	s.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE shipments
		 SET supplier_name = $3, expected_quantity = $4, received_quantity = $5, received_at = $6, updated_at = $7
		 WHERE tenant_id = $1 AND id = $2`,
		s.TenantID, s.ID, s.SupplierName, s.ExpectedQuantity, s.ReceivedQuantity, s.ReceivedAt, s.UpdatedAt,
	)
	if err != nil {
		return model.Shipment{}, fmt.Errorf("storage: update shipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Shipment{}, ErrNotFound
	}
	return s, nil
}

// GetShipment fetches a shipment without locking.
func (db *DB) GetShipment(ctx context.Context, tenantID, id string) (model.Shipment, error) {
	var s model.Shipment
	err := db.pool.QueryRow(ctx,
		`SELECT tenant_id, id, supplier_name, expected_quantity, received_quantity, received_at, created_at, updated_at
		 FROM shipments WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&s.TenantID, &s.ID, &s.SupplierName, &s.ExpectedQuantity, &s.ReceivedQuantity, &s.ReceivedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Shipment{}, ErrNotFound
		}
		return model.Shipment{}, fmt.Errorf("storage: get shipment: %w", err)
	}
	return s, nil
}
