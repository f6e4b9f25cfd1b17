package guard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
)

func alwaysPass(guard.Context) bool { return true }
func alwaysFail(guard.Context) bool { return false }

func TestEvaluate_AllPass(t *testing.T) {
	guards := []guard.Guard{
		guard.Block("a", "a failed", alwaysPass),
		guard.Warn("b", "b failed", alwaysPass),
	}

	out := guard.Evaluate(guards, guard.Context{Now: time.Now()})
	assert.True(t, out.Passed)
	assert.Nil(t, out.Failure)
	assert.Empty(t, out.Warnings)
}

func TestEvaluate_LowestBlockIndexWins(t *testing.T) {
	evaluated := make([]int, 0, 6)
	counting := func(i int, result bool) func(guard.Context) bool {
		return func(guard.Context) bool {
			evaluated = append(evaluated, i)
			return result
		}
	}

	// Guards at indices 2 and 5 both fail BLOCK; 2 must win and 5 must
	// never be evaluated.
	guards := []guard.Guard{
		guard.Block("g0", "g0", counting(0, true)),
		guard.Warn("g1", "g1", counting(1, true)),
		guard.Block("g2", "g2 failed", counting(2, false)),
		guard.Block("g3", "g3", counting(3, true)),
		guard.Warn("g4", "g4", counting(4, true)),
		guard.Block("g5", "g5 failed", counting(5, false)),
	}

	out := guard.Evaluate(guards, guard.Context{})
	require.False(t, out.Passed)
	require.NotNil(t, out.Failure)
	assert.Equal(t, 2, out.Failure.Index)
	assert.Equal(t, "g2", out.Failure.GuardID)
	assert.Equal(t, "g2 failed", out.Failure.Formatted)
	assert.Equal(t, []int{0, 1, 2}, evaluated, "evaluation must stop at the first BLOCK failure")
}

func TestEvaluate_WarnDoesNotShortCircuit(t *testing.T) {
	guards := []guard.Guard{
		guard.Warn("w0", "w0 fired", alwaysFail),
		guard.Block("b1", "b1", alwaysPass),
		guard.Warn("w2", "w2 fired", alwaysFail),
	}

	out := guard.Evaluate(guards, guard.Context{})
	require.True(t, out.Passed)
	require.Len(t, out.Warnings, 2)
	assert.Equal(t, 0, out.Warnings[0].Index)
	assert.Equal(t, "w0 fired", out.Warnings[0].Formatted)
	assert.Equal(t, 2, out.Warnings[1].Index)
	assert.Equal(t, model.GuardWarning{Index: 2, GuardID: "w2", Formatted: "w2 fired"}, out.Warnings[1])
}

func TestEvaluate_WarningsBeforeBlockAreKept(t *testing.T) {
	guards := []guard.Guard{
		guard.Warn("w0", "w0 fired", alwaysFail),
		guard.Block("b1", "b1 failed", alwaysFail),
	}

	out := guard.Evaluate(guards, guard.Context{})
	require.False(t, out.Passed)
	assert.Equal(t, 1, out.Failure.Index)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "w0", out.Warnings[0].GuardID)
}

func TestEvaluate_MessageSeesContext(t *testing.T) {
	g := guard.Guard{
		ID:        "ctx",
		Severity:  model.SeverityBlock,
		Predicate: alwaysFail,
		Message: func(ctx guard.Context) string {
			return "input name: " + ctx.Input["name"].(string)
		},
	}

	out := guard.Evaluate([]guard.Guard{g}, guard.Context{Input: map[string]any{"name": "brisket"}})
	require.False(t, out.Passed)
	assert.Equal(t, "input name: brisket", out.Failure.Formatted)
}

func TestEvaluate_EmptyGuardListPasses(t *testing.T) {
	out := guard.Evaluate(nil, guard.Context{})
	assert.True(t, out.Passed)
}
