package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 1800*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 20*time.Second, cfg.Sweeper.InitialDelay)
	assert.Equal(t, 300, cfg.Sweeper.MaxAccounts)
	assert.Equal(t, 3, cfg.Sweeper.Concurrency)
	assert.Equal(t, 30, cfg.Sweeper.RangeDays)
	assert.Equal(t, 60*time.Second, cfg.Upstream.RefreshTimeout)
}

func TestLoadAppliesFloors(t *testing.T) {
	t.Setenv("SWEEPER_INTERVAL_SECONDS", "5")
	t.Setenv("SWEEPER_INITIAL_DELAY_MS", "10")
	t.Setenv("SWEEPER_MAX_ACCOUNTS", "1")
	t.Setenv("SWEEPER_CONCURRENCY", "99")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, time.Second, cfg.Sweeper.InitialDelay)
	assert.Equal(t, 10, cfg.Sweeper.MaxAccounts)
	assert.Equal(t, 10, cfg.Sweeper.Concurrency)
}

func TestLoadRangeDaysAllowList(t *testing.T) {
	t.Setenv("SWEEPER_RANGE_DAYS", "15")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Sweeper.RangeDays)

	t.Setenv("SWEEPER_RANGE_DAYS", "14")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sweeper.RangeDays)
}
