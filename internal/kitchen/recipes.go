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

type recipeVersionCreateInput struct {
	RecipeID         string  `json:"recipe_id"`
	YieldQty         float64 `json:"yield_qty"`
	YieldUnit        int     `json:"yield_unit"`
	PrepTime         int     `json:"prep_time"`
	CookTime         int     `json:"cook_time"`
	RestTime         int     `json:"rest_time"`
	Difficulty       int     `json:"difficulty"`
	InstructionsText string  `json:"instructions_text"`
	NotesText        string  `json:"notes_text"`
}

func recipeVersionCreate(t Thresholds) *runtime.Definition {
	return &runtime.Definition{
		Entity:  model.EntityRecipeVersion,
		Command: "create",
		Kind:    runtime.KindCreate,
		Guards: []guard.Guard{
			guard.Block("validDifficulty", "difficulty must be between 1 and 5",
				func(c guard.Context) bool {
					v := c.Proposed.(model.RecipeVersion)
					return v.Difficulty >= 1 && v.Difficulty <= 5
				}),
			guard.Block("validTimes", "times cannot be negative",
				func(c guard.Context) bool {
					v := c.Proposed.(model.RecipeVersion)
					return v.PrepTime >= 0 && v.CookTime >= 0 && v.RestTime >= 0
				}),
			guard.Warn("warnHighDifficulty",
				fmt.Sprintf("difficulty %d or above; consider assigning experienced staff", t.HighDifficulty),
				func(c guard.Context) bool {
					return c.Proposed.(model.RecipeVersion).Difficulty < t.HighDifficulty
				}),
			guard.Warn("warnLongRecipe",
				fmt.Sprintf("total time exceeds %d minutes", t.LongRecipeMinutes),
				func(c guard.Context) bool {
					return c.Proposed.(model.RecipeVersion).TotalTime() <= t.LongRecipeMinutes
				}),
		},
		// Lock the parent recipe so concurrent version creation for the same
		// recipe serializes and version numbers stay gapless.
		Load: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
			var in recipeVersionCreateInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			return db.GetRecipeForUpdate(ctx, tx, tenantID, in.RecipeID)
		},
		Merge: func(current any, input map[string]any) (any, error) {
			var in recipeVersionCreateInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			return model.RecipeVersion{
				RecipeID:         in.RecipeID,
				YieldQty:         in.YieldQty,
				YieldUnit:        in.YieldUnit,
				PrepTime:         in.PrepTime,
				CookTime:         in.CookTime,
				RestTime:         in.RestTime,
				Difficulty:       in.Difficulty,
				InstructionsText: in.InstructionsText,
				NotesText:        in.NotesText,
			}, nil
		},
		Apply: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
			v := proposed.(model.RecipeVersion)
			v.TenantID = tenantID
			next, err := db.NextRecipeVersionNumber(ctx, tx, tenantID, v.RecipeID)
			if err != nil {
				return runtime.Persisted{}, err
			}
			v.Version = next
			v, err = db.InsertRecipeVersion(ctx, tx, v)
			if err != nil {
				return runtime.Persisted{}, err
			}
			return runtime.Persisted{ID: v.ID, Value: v}, nil
		},
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			v := p.Value.(model.RecipeVersion)
			return []model.DomainEvent{{
				Type: model.EventRecipeVersionCreated,
				Payload: map[string]any{
					"recipe_id":  v.RecipeID,
					"version":    v.Version,
					"difficulty": v.Difficulty,
				},
			}}
		},
	}
}

type recipeUpdateInput struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	YieldQuantity float64 `json:"yield_quantity"`
	YieldUnitID   int     `json:"yield_unit_id"`
}

func recipeUpdate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityRecipe,
		Command:  "update",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validName", "name cannot be empty",
				func(c guard.Context) bool {
					return c.Proposed.(model.Recipe).Name != ""
				}),
			guard.Block("validYield", "yield quantity cannot be negative",
				func(c guard.Context) bool {
					return c.Proposed.(model.Recipe).YieldQuantity >= 0
				}),
		},
		Load: loadRecipe,
		Merge: func(current any, input map[string]any) (any, error) {
			var in recipeUpdateInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			r := current.(model.Recipe)
			if _, ok := input["name"]; ok {
				r.Name = in.Name
			}
			if _, ok := input["yield_quantity"]; ok {
				r.YieldQuantity = in.YieldQuantity
			}
			if _, ok := input["yield_unit_id"]; ok {
				r.YieldUnitID = in.YieldUnitID
			}
			return r, nil
		},
		Apply: applyRecipe,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			r := p.Value.(model.Recipe)
			return []model.DomainEvent{{
				Type:    model.EventRecipeUpdated,
				Payload: map[string]any{"name": r.Name},
			}}
		},
	}
}

func recipeActivate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityRecipe,
		Command:  "activate",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Warn("warnAlreadyActive", "recipe is already active",
				func(c guard.Context) bool {
					return !c.Current.(model.Recipe).IsActive
				}),
		},
		Load: loadRecipe,
		Merge: func(current any, input map[string]any) (any, error) {
			r := current.(model.Recipe)
			r.IsActive = true
			return r, nil
		},
		Apply: applyRecipe,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			return []model.DomainEvent{{Type: model.EventRecipeActivated, Payload: map[string]any{}}}
		},
	}
}

func recipeDeactivate() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityRecipe,
		Command:  "deactivate",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("requireReason", "a reason is required to deactivate a recipe",
				func(c guard.Context) bool {
					reason, _ := c.Input["reason"].(string)
					return reason != ""
				}),
			guard.Warn("warnAlreadyInactive", "recipe is already inactive",
				func(c guard.Context) bool {
					return c.Current.(model.Recipe).IsActive
				}),
		},
		Load: loadRecipe,
		Merge: func(current any, input map[string]any) (any, error) {
			r := current.(model.Recipe)
			r.IsActive = false
			return r, nil
		},
		Apply: applyRecipe,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			return []model.DomainEvent{{Type: model.EventRecipeDeactivated, Payload: map[string]any{}}}
		},
	}
}

func loadRecipe(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
	return db.GetRecipeForUpdate(ctx, tx, tenantID, inputID(input))
}

func applyRecipe(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
	r, err := db.UpdateRecipe(ctx, tx, proposed.(model.Recipe))
	if err != nil {
		return runtime.Persisted{}, err
	}
	return runtime.Persisted{ID: r.ID, Value: r}, nil
}
