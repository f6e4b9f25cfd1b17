// Package kitchen declares the command definitions and guards for the
// kitchen, logistics, and staff entities: recipes, recipe versions, dishes,
// menus, prep tasks, prep list items, shipments, and employee availability.
//
// Guards are ordered; hard-stop validation comes first, advisories after.
// Advisory thresholds are configuration, not constants, so operators can tune
// them without a deploy.
package kitchen

import (
	"fmt"

	"github.com/angriff36/manifest/internal/runtime"
)

// Thresholds parameterizes the advisory guards.
type Thresholds struct {
	// HighDifficulty triggers the recipe-version difficulty warning when
	// difficulty is at or above this value.
	HighDifficulty int
	// LongRecipeMinutes triggers the long-recipe warning when prep + cook +
	// rest exceeds this many minutes.
	LongRecipeMinutes int
	// QuantityIncreaseRatio triggers the prep-list quantity warning when the
	// new quantity exceeds the current one by more than this fraction.
	QuantityIncreaseRatio float64
	// ShortNoticeDays triggers the availability warning when the effective
	// date is fewer than this many days out.
	ShortNoticeDays int
}

// DefaultThresholds returns the stock advisory thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighDifficulty:        4,
		LongRecipeMinutes:     480,
		QuantityIncreaseRatio: 0.5,
		ShortNoticeDays:       7,
	}
}

// Register installs every kitchen command definition into the registry.
func Register(reg *runtime.Registry, t Thresholds) error {
	defs := []*runtime.Definition{
		recipeVersionCreate(t),
		recipeUpdate(),
		recipeActivate(),
		recipeDeactivate(),
		dishUpdatePricing(),
		dishUpdateLeadTime(),
		menuUpdate(),
		menuActivate(),
		menuDeactivate(),
		taskClaim(),
		taskStart(),
		taskComplete(),
		prepListItemUpdateQuantity(t),
		prepListItemUpdateStation(),
		shipmentReceive(),
		availabilitySet(t),
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("kitchen: %w", err)
		}
	}
	return nil
}
