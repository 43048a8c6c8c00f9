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

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "event_timetable", cfg.Database.Name)
	assert.Equal(t, "event-timetable", cfg.Database.ApplicationName)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "event-timetable", cfg.Redis.ClientName)
	assert.Equal(t, 4, cfg.Redis.PoolSize)
	assert.Equal(t, 2, cfg.Timetable.DefaultPolicy)
	assert.True(t, cfg.Timetable.ConferenceParallel)
	assert.True(t, cfg.Timetable.SessionParallel)
	assert.False(t, cfg.Timetable.SlotParallel)
	assert.Equal(t, 8, cfg.Timetable.MaxCascadeDepth)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, 2, cfg.Timetable.NotifyWorkers)
	assert.Equal(t, 3, cfg.Timetable.NotifyRetries)
	assert.Equal(t, "./exports", cfg.Export.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Export.ResultTTL)
}

func TestLoadTimetableOverrides(t *testing.T) {
	t.Setenv("TIMETABLE_DEFAULT_POLICY", "1")
	t.Setenv("TIMETABLE_SLOT_PARALLEL", "true")
	t.Setenv("TIMETABLE_CACHE_ENABLED", "true")
	t.Setenv("TIMETABLE_CACHE_TTL", "90s")
	t.Setenv("TIMETABLE_MAX_CASCADE_DEPTH", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Timetable.DefaultPolicy)
	assert.True(t, cfg.Timetable.SlotParallel)
	assert.True(t, cfg.Timetable.CacheEnabled)
	assert.Equal(t, 90*time.Second, cfg.Timetable.CacheTTL)
	assert.Equal(t, 3, cfg.Timetable.MaxCascadeDepth)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Setenv("TIMETABLE_DEFAULT_POLICY", "7")
	t.Setenv("TIMETABLE_MAX_CASCADE_DEPTH", "0")
	t.Setenv("TIMETABLE_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Timetable.DefaultPolicy)
	assert.Equal(t, 8, cfg.Timetable.MaxCascadeDepth)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL)
}

func TestLoadRedisPoolSize(t *testing.T) {
	t.Setenv("TIMETABLE_NOTIFY_WORKERS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Redis.PoolSize)

	t.Setenv("REDIS_POOL_SIZE", "3")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Redis.PoolSize)
}
