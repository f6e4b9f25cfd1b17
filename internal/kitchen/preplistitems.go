package kitchen

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type itemQuantityInput struct {
	ID             string  `json:"id"`
	ScaledQuantity float64 `json:"scaled_quantity"`
}

func prepListItemUpdateQuantity(t Thresholds) *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityPrepListItem,
		Command:  "updateQuantity",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validQuantity", "quantity must be greater than zero",
				func(c guard.Context) bool {
					return c.Proposed.(model.PrepListItem).ScaledQuantity > 0
				}),
			guard.Warn("warnQuantityIncrease",
				fmt.Sprintf("quantity increased by more than %.0f%%", t.QuantityIncreaseRatio*100),
				func(c guard.Context) bool {
					cur := c.Current.(model.PrepListItem).ScaledQuantity
					next := c.Proposed.(model.PrepListItem).ScaledQuantity
					if cur <= 0 {
						return true
					}
					return next <= cur*(1+t.QuantityIncreaseRatio)
				}),
		},
		Load: loadPrepListItem,
		Merge: func(current any, input map[string]any) (any, error) {
			var in itemQuantityInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			it := current.(model.PrepListItem)
			it.ScaledQuantity = in.ScaledQuantity
			return it, nil
		},
		Apply: applyPrepListItem,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			it := p.Value.(model.PrepListItem)
			return []model.DomainEvent{{
				Type:    model.EventPrepListItemQuantityUpdated,
				Payload: map[string]any{"scaled_quantity": it.ScaledQuantity},
			}}
		},
	}
}

type itemStationInput struct {
	ID        string `json:"id"`
	StationID string `json:"station_id"`
}

func prepListItemUpdateStation() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityPrepListItem,
		Command:  "updateStation",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validStation", "station cannot be empty",
				func(c guard.Context) bool {
					return c.Proposed.(model.PrepListItem).StationID != ""
				}),
			guard.Warn("warnStationChange", "item moved to a different station",
				func(c guard.Context) bool {
					return c.Current.(model.PrepListItem).StationID == c.Proposed.(model.PrepListItem).StationID
				}),
		},
		Load: loadPrepListItem,
		Merge: func(current any, input map[string]any) (any, error) {
			var in itemStationInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			it := current.(model.PrepListItem)
			it.StationID = in.StationID
			return it, nil
		},
		Apply: applyPrepListItem,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			it := p.Value.(model.PrepListItem)
			return []model.DomainEvent{{
				Type:    model.EventPrepListItemStationUpdated,
				Payload: map[string]any{"station_id": it.StationID},
			}}
		},
	}
}

func loadPrepListItem(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
	return db.GetPrepListItemForUpdate(ctx, tx, tenantID, inputID(input))
}

func applyPrepListItem(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
	it, err := db.UpdatePrepListItem(ctx, tx, proposed.(model.PrepListItem))
	if err != nil {
		return runtime.Persisted{}, err
	}
	return runtime.Persisted{ID: it.ID, Value: it}, nil
}
