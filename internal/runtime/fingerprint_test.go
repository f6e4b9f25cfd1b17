package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	input := map[string]any{"recipe_id": "r-1", "difficulty": 3}

	a, err := Fingerprint("RecipeVersion", "create", input)
	require.NoError(t, err)
	b, err := Fingerprint("RecipeVersion", "create", input)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	// encoding/json sorts map keys, so construction order must not matter.
	a, err := Fingerprint("RecipeVersion", "create", map[string]any{
		"recipe_id":  "r-1",
		"difficulty": 3,
		"prep_time":  30,
	})
	require.NoError(t, err)

	b, err := Fingerprint("RecipeVersion", "create", map[string]any{
		"prep_time":  30,
		"difficulty": 3,
		"recipe_id":  "r-1",
	})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	base, err := Fingerprint("RecipeVersion", "create", map[string]any{"difficulty": 3})
	require.NoError(t, err)

	otherInput, err := Fingerprint("RecipeVersion", "create", map[string]any{"difficulty": 4})
	require.NoError(t, err)
	require.NotEqual(t, base, otherInput)

	otherCommand, err := Fingerprint("RecipeVersion", "update", map[string]any{"difficulty": 3})
	require.NoError(t, err)
	require.NotEqual(t, base, otherCommand)

	otherEntity, err := Fingerprint("Recipe", "create", map[string]any{"difficulty": 3})
	require.NoError(t, err)
	require.NotEqual(t, base, otherEntity)
}

func TestFingerprintEntityCommandBoundary(t *testing.T) {
	// The separator keeps "ab"+"c" distinct from "a"+"bc".
	a, err := Fingerprint("ab", "c", nil)
	require.NoError(t, err)
	b, err := Fingerprint("a", "bc", nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
