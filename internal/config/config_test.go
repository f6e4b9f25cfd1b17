package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvStr(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	require.Equal(t, "hello", envStr("TEST_STR", "fallback"))
	require.Equal(t, "fallback", envStr("TEST_STR_MISSING", "fallback"))
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	require.Equal(t, 42, envInt("TEST_INT", 0))
	require.Equal(t, 99, envInt("TEST_INT_MISSING", 99))

	t.Setenv("TEST_INT_BAD", "abc")
	require.Equal(t, 7, envInt("TEST_INT_BAD", 7))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	require.True(t, envBool("TEST_BOOL", false))
	require.False(t, envBool("TEST_BOOL_MISSING", false))

	t.Setenv("TEST_BOOL_BAD", "yep")
	require.True(t, envBool("TEST_BOOL_BAD", true))
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	require.Equal(t, 0.75, envFloat("TEST_FLOAT", 0))
	require.Equal(t, 0.5, envFloat("TEST_FLOAT_MISSING", 0.5))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	require.Equal(t, 5*time.Second, envDuration("TEST_DUR", 0))

	t.Setenv("TEST_DUR_BAD", "five-seconds")
	require.Equal(t, time.Minute, envDuration("TEST_DUR_BAD", time.Minute))
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 4, cfg.WarnHighDifficulty)
	require.Equal(t, 480, cfg.WarnLongRecipeMinutes)
	require.Equal(t, 0.5, cfg.WarnQuantityIncrease)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	t.Setenv("MANIFEST_WARN_HIGH_DIFFICULTY", "9")
	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MANIFEST_WARN_HIGH_DIFFICULTY")
}

func TestValidateRejectsZeroTTL(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.IdempotencyTTL = 0
	require.Error(t, cfg.Validate())
}
