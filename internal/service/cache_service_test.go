package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newCacheRepoFake()
	svc := NewCacheService(repo, nil, 0, zap.NewNop(), false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", "v", 0))
	var out string
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	v, err := svc.Bump(ctx, "version")
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Empty(t, repo.values)
	assert.Empty(t, repo.counters)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceVersionsAndMetrics(t *testing.T) {
	repo := newCacheRepoFake()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	v, err := svc.Version(ctx, "timetable:version:evt-1:conf")
	require.NoError(t, err)
	assert.Zero(t, v)
	v, err = svc.Bump(ctx, "timetable:version:evt-1:conf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = svc.Version(ctx, "timetable:version:evt-1:conf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	var out map[string]int
	hit, err := svc.Get(ctx, "timetable:evt-1:conf:v1:UTC", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(ctx, "timetable:evt-1:conf:v1:UTC", map[string]int{"entries": 2}, 0))
	hit, err = svc.Get(ctx, "timetable:evt-1:conf:v1:UTC", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, out["entries"])

	require.NoError(t, svc.Invalidate(ctx, "timetable:evt-1:conf:v*"))
	assert.NotContains(t, repo.values, "timetable:evt-1:conf:v1:UTC")

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
}
