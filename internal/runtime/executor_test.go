package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/kitchen"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
	"github.com/angriff36/manifest/internal/testutil"
)

var (
	testDB       *storage.DB
	testExecutor *runtime.Executor
)

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	ctx := context.Background()
	logger := testutil.TestLogger()

	var err error
	testDB, err = tc.NewTestDB(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor_test: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close(ctx)

	registry := runtime.NewRegistry()
	if err := kitchen.Register(registry, kitchen.DefaultThresholds()); err != nil {
		fmt.Fprintf(os.Stderr, "executor_test: %v\n", err)
		os.Exit(1)
	}
	testExecutor = runtime.NewExecutor(testDB, registry, logger, 24*time.Hour)

	os.Exit(m.Run())
}

func seedRecipe(t *testing.T, tenantID string) model.Recipe {
	t.Helper()
	r, err := testDB.CreateRecipe(context.Background(), model.Recipe{
		TenantID:        tenantID,
		Name:            "veloute base",
		YieldQuantity:   4,
		DifficultyLevel: 2,
	})
	require.NoError(t, err)
	return r
}

func versionCreateInput(recipeID string, difficulty int) map[string]any {
	return map[string]any{
		"recipe_id":  recipeID,
		"difficulty": difficulty,
		"prep_time":  15,
		"cook_time":  25,
	}
}

func TestRunCommandSuccess(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-success")

	before, err := testDB.UnpublishedOutboxCount(ctx)
	require.NoError(t, err)

	result, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-success",
		versionCreateInput(recipe.ID, 2), "")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Created)
	require.False(t, result.Replayed)
	require.Empty(t, result.Warnings)
	require.Len(t, result.EmittedEvents, 1)
	require.Equal(t, model.EventRecipeVersionCreated, result.EmittedEvents[0].Type)
	require.Equal(t, "exec-success", result.EmittedEvents[0].TenantID)
	require.False(t, result.EmittedEvents[0].OccurredAt.IsZero())

	var v model.RecipeVersion
	require.NoError(t, json.Unmarshal(result.Result, &v))
	require.Equal(t, 1, v.Version)

	// The event and the version row commit atomically.
	after, err := testDB.UnpublishedOutboxCount(ctx)
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	state, err := testDB.GetManifestState(ctx, "exec-success", model.EntityRecipeVersion, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), state.Version)
	require.Equal(t, "create", state.LastCommand)
}

func TestRunCommandGuardBlockRollsBack(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-block")

	before, err := testDB.UnpublishedOutboxCount(ctx)
	require.NoError(t, err)

	result, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-block",
		versionCreateInput(recipe.ID, 6), "")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.GuardFailure)
	require.Equal(t, "validDifficulty", result.GuardFailure.GuardID)
	require.Equal(t, 0, result.GuardFailure.Index)
	require.Contains(t, result.GuardFailure.Formatted, "difficulty must be between 1 and 5")

	// Nothing committed: no version row, no event.
	n, err := testDB.CountRecipeVersions(ctx, "exec-block", recipe.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	after, err := testDB.UnpublishedOutboxCount(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRunCommandWarningsAccumulate(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-warns")

	// Difficulty 5 and a 10-hour total time trip both advisory guards.
	result, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-warns",
		map[string]any{
			"recipe_id":  recipe.ID,
			"difficulty": 5,
			"prep_time":  120,
			"cook_time":  480,
		}, "")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Warnings, 2)
	require.Equal(t, "warnHighDifficulty", result.Warnings[0].GuardID)
	require.Equal(t, "warnLongRecipe", result.Warnings[1].GuardID)
	require.Less(t, result.Warnings[0].Index, result.Warnings[1].Index)
}

func TestRunCommandUnknown(t *testing.T) {
	_, err := testExecutor.RunCommand(context.Background(), model.EntityRecipe, "vanish", "exec-unknown",
		map[string]any{}, "")
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrUnknownCommand))
}

func TestRunCommandTargetNotFound(t *testing.T) {
	_, err := testExecutor.RunCommand(context.Background(), model.EntityRecipe, "activate", "exec-missing",
		map[string]any{"id": "00000000-0000-0000-0000-000000000000"}, "")
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRunCommandIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-replay")
	input := versionCreateInput(recipe.ID, 3)

	first, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-replay",
		input, "key-replay")
	require.NoError(t, err)
	require.True(t, first.Success)
	require.False(t, first.Replayed)

	second, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-replay",
		input, "key-replay")
	require.NoError(t, err)
	require.True(t, second.Success)
	require.True(t, second.Replayed)
	require.JSONEq(t, string(first.Result), string(second.Result))

	// The side effect ran exactly once.
	n, err := testDB.CountRecipeVersions(ctx, "exec-replay", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunCommandIdempotencyFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-mismatch")

	first, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-mismatch",
		versionCreateInput(recipe.ID, 2), "key-mismatch")
	require.NoError(t, err)
	require.True(t, first.Success)

	// Same key, different payload.
	_, err = testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-mismatch",
		versionCreateInput(recipe.ID, 3), "key-mismatch")
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrIdempotencyConflict))

	n, err := testDB.CountRecipeVersions(ctx, "exec-mismatch", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunCommandIdempotentGuardFailureReplay(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-blockreplay")
	input := versionCreateInput(recipe.ID, 6)

	first, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-blockreplay",
		input, "key-blocked")
	require.NoError(t, err)
	require.False(t, first.Success)
	require.False(t, first.Replayed)
	require.NotNil(t, first.GuardFailure)

	// Retrying with the same key replays the stored rejection.
	second, err := testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-blockreplay",
		input, "key-blocked")
	require.NoError(t, err)
	require.False(t, second.Success)
	require.True(t, second.Replayed)
	require.NotNil(t, second.GuardFailure)
	require.Equal(t, first.GuardFailure.GuardID, second.GuardFailure.GuardID)
}

func TestRunCommandConcurrentVersionCreation(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-concurrent")

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = testExecutor.RunCommand(ctx, model.EntityRecipeVersion, "create", "exec-concurrent",
				versionCreateInput(recipe.ID, 2), "")
		}(i)
	}
	wg.Wait()

	// The parent-recipe row lock serializes the writers; every command
	// succeeds and version numbers stay gapless.
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	n, err := testDB.CountRecipeVersions(ctx, "exec-concurrent", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, workers, n)
}

func TestRunCommandVersionAdvancesPerCommand(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-versions")

	for i := 1; i <= 3; i++ {
		result, err := testExecutor.RunCommand(ctx, model.EntityRecipe, "update", "exec-versions",
			map[string]any{"id": recipe.ID, "name": fmt.Sprintf("rev %d", i)}, "")
		require.NoError(t, err)
		require.True(t, result.Success)

		state, err := testDB.GetManifestState(ctx, "exec-versions", model.EntityRecipe, recipe.ID)
		require.NoError(t, err)
		require.Equal(t, int64(i), state.Version)
		require.Equal(t, "update", state.LastCommand)
	}
}

func TestRunCommandTenantIsolation(t *testing.T) {
	ctx := context.Background()
	recipe := seedRecipe(t, "exec-tenant-a")

	// Another tenant cannot touch the row even with the right ID.
	_, err := testExecutor.RunCommand(ctx, model.EntityRecipe, "update", "exec-tenant-b",
		map[string]any{"id": recipe.ID, "name": "hijacked"}, "")
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	got, err := testDB.GetRecipe(ctx, "exec-tenant-a", recipe.ID)
	require.NoError(t, err)
	require.Equal(t, "veloute base", got.Name)
}
