package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, 500.0, cfg.SilverThreshold)
	require.Equal(t, 2000.0, cfg.GoldThreshold)
	require.True(t, cfg.CountOpenTabs)
	require.False(t, cfg.AllowPartialPayments)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("LOYALTY_SILVER_THRESHOLD", "3000")
	t.Setenv("LOYALTY_GOLD_THRESHOLD", "2000")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid tier thresholds")
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("LOYALTY_SILVER_THRESHOLD", "100")
	t.Setenv("LOYALTY_GOLD_THRESHOLD", "400")
	t.Setenv("LOYALTY_COUNT_OPEN_TABS", "false")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "100", cfg.SilverThresholdAmount().String())
	require.Equal(t, "400", cfg.GoldThresholdAmount().String())
	require.False(t, cfg.CountOpenTabs)
}
