package kitchen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type shipmentReceiveInput struct {
	ID               string  `json:"id"`
	ReceivedQuantity float64 `json:"received_quantity"`
}

func shipmentReceive() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityShipment,
		Command:  "receive",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("notYetReceived", "shipment has already been received",
				func(c guard.Context) bool {
					return c.Current.(model.Shipment).ReceivedAt == nil
				}),
			guard.Block("validReceivedQuantity", "received quantity cannot be negative",
				func(c guard.Context) bool {
					return c.Proposed.(model.Shipment).ReceivedQuantity >= 0
				}),
			guard.Warn("warnPartialReceipt", "received quantity is below the expected quantity",
				func(c guard.Context) bool {
					s := c.Proposed.(model.Shipment)
					return s.ReceivedQuantity >= s.ExpectedQuantity
				}),
		},
		Load: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
			return db.GetShipmentForUpdate(ctx, tx, tenantID, inputID(input))
		},
		Merge: func(current any, input map[string]any) (any, error) {
			var in shipmentReceiveInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			s := current.(model.Shipment)
			s.ReceivedQuantity = in.ReceivedQuantity
			now := time.Now().UTC()
			s.ReceivedAt = &now
			return s, nil
		},
		Apply: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
			s, err := db.UpdateShipment(ctx, tx, proposed.(model.Shipment))
			if err != nil {
				return runtime.Persisted{}, err
			}
			return runtime.Persisted{ID: s.ID, Value: s}, nil
		},
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			s := p.Value.(model.Shipment)
			return []model.DomainEvent{{
				Type: model.EventShipmentReceived,
				Payload: map[string]any{
					"supplier_name":     s.SupplierName,
					"expected_quantity": s.ExpectedQuantity,
					"received_quantity": s.ReceivedQuantity,
				},
			}}
		},
	}
}
