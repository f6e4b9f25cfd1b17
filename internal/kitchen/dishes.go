package kitchen

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type dishPricingInput struct {
	ID             string  `json:"id"`
	PricePerPerson float64 `json:"price_per_person"`
	CostPerPerson  float64 `json:"cost_per_person"`
}

func dishUpdatePricing() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityDish,
		Command:  "updatePricing",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validPricing", "price and cost cannot be negative",
				func(c guard.Context) bool {
					d := c.Proposed.(model.Dish)
					return d.PricePerPerson >= 0 && d.CostPerPerson >= 0
				}),
			guard.Warn("warnCostExceedsPrice", "cost per person exceeds price per person",
				func(c guard.Context) bool {
					d := c.Proposed.(model.Dish)
					return d.CostPerPerson <= d.PricePerPerson
				}),
		},
		Load: loadDish,
		Merge: func(current any, input map[string]any) (any, error) {
			var in dishPricingInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			d := current.(model.Dish)
			if _, ok := input["price_per_person"]; ok {
				d.PricePerPerson = in.PricePerPerson
			}
			if _, ok := input["cost_per_person"]; ok {
				d.CostPerPerson = in.CostPerPerson
			}
			return d, nil
		},
		Apply: applyDish,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			d := p.Value.(model.Dish)
			return []model.DomainEvent{{
				Type: model.EventDishPricingUpdated,
				Payload: map[string]any{
					"price_per_person": d.PricePerPerson,
					"cost_per_person":  d.CostPerPerson,
				},
			}}
		},
	}
}

type dishLeadTimeInput struct {
	ID              string `json:"id"`
	MinPrepLeadDays int    `json:"min_prep_lead_days"`
	MaxPrepLeadDays int    `json:"max_prep_lead_days"`
}

func dishUpdateLeadTime() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityDish,
		Command:  "updateLeadTime",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validLeadTime", "lead time range must satisfy 0 <= min <= max",
				func(c guard.Context) bool {
					d := c.Proposed.(model.Dish)
					return d.MinPrepLeadDays >= 0 && d.MinPrepLeadDays <= d.MaxPrepLeadDays
				}),
		},
		Load: loadDish,
		Merge: func(current any, input map[string]any) (any, error) {
			var in dishLeadTimeInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			d := current.(model.Dish)
			if _, ok := input["min_prep_lead_days"]; ok {
				d.MinPrepLeadDays = in.MinPrepLeadDays
			}
			if _, ok := input["max_prep_lead_days"]; ok {
				d.MaxPrepLeadDays = in.MaxPrepLeadDays
			}
			return d, nil
		},
		Apply: applyDish,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			d := p.Value.(model.Dish)
			return []model.DomainEvent{{
				Type: model.EventDishLeadTimeUpdated,
				Payload: map[string]any{
					"min_prep_lead_days": d.MinPrepLeadDays,
					"max_prep_lead_days": d.MaxPrepLeadDays,
				},
			}}
		},
	}
}

func loadDish(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
	return db.GetDishForUpdate(ctx, tx, tenantID, inputID(input))
}

func applyDish(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
	d, err := db.UpdateDish(ctx, tx, proposed.(model.Dish))
	if err != nil {
		return runtime.Persisted{}, err
	}
	return runtime.Persisted{ID: d.ID, Value: d}, nil
}
