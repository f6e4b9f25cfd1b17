package kitchen

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type menuUpdateInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func menuUpdate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityMenu,
		Command:  "update",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validName", "name cannot be empty",
				func(c guard.Context) bool {
					return c.Proposed.(model.Menu).Name != ""
				}),
		},
		Load: loadMenu,
		Merge: func(current any, input map[string]any) (any, error) {
			var in menuUpdateInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			m := current.(model.Menu)
			if _, ok := input["name"]; ok {
				m.Name = in.Name
			}
			return m, nil
		},
		Apply: applyMenu,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			m := p.Value.(model.Menu)
			return []model.DomainEvent{{
				Type:    model.EventMenuUpdated,
				Payload: map[string]any{"name": m.Name},
			}}
		},
	}
}

func menuActivate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityMenu,
		Command:  "activate",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Warn("warnAlreadyActive", "menu is already active",
				func(c guard.Context) bool {
					return !c.Current.(model.Menu).IsActive
				}),
		},
		Load: loadMenu,
		Merge: func(current any, input map[string]any) (any, error) {
			m := current.(model.Menu)
			m.IsActive = true
			return m, nil
		},
		Apply: applyMenu,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			return []model.DomainEvent{{Type: model.EventMenuActivated, Payload: map[string]any{}}}
		},
	}
}

func menuDeactivate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityMenu,
		Command:  "deactivate",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Warn("warnAlreadyInactive", "menu is already inactive",
				func(c guard.Context) bool {
					return c.Current.(model.Menu).IsActive
				}),
		},
		Load: loadMenu,
		Merge: func(current any, input map[string]any) (any, error) {
			m := current.(model.Menu)
			m.IsActive = false
			return m, nil
		},
		Apply: applyMenu,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			return []model.DomainEvent{{Type: model.EventMenuDeactivated, Payload: map[string]any{}}}
		},
	}
}

func loadMenu(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
	return db.GetMenuForUpdate(ctx, tx, tenantID, inputID(input))
}

func applyMenu(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
	m, err := db.UpdateMenu(ctx, tx, proposed.(model.Menu))
	if err != nil {
		return runtime.Persisted{}, err
	}
	return runtime.Persisted{ID: m.ID, Value: m}, nil
}
