package promobserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/lockingcache"
	"github.com/hupe1980/lockingcache/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringLoader struct{}

func (stringLoader) Load(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return strings.Repeat("x", len(key)), nil
}

func (stringLoader) LoadAll(context.Context) (map[string]string, error) { return nil, nil }

func (stringLoader) Remove(context.Context, string, string) error { return nil }

func TestObserver(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	obs := New("test_cache")
	require.NoError(t, obs.Register(reg))

	c, err := lockingcache.New[string, string](stringLoader{},
		lockingcache.SizerFunc[string](func(s string) int64 { return int64(len(s)) }),
		lockingcache.WithMetricsObserver(obs),
	)
	require.NoError(t, err)
	defer c.Close()
	obs.TrackSize(c.Size)

	ctx := context.Background()
	for _, k := range []string{"abc", "abc", "hello"} {
		h, err := c.Get(ctx, k)
		require.NoError(t, err)
		require.NoError(t, h.Close())
	}
	_, err = c.Get(ctx, "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.lookups.WithLabelValues("load")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.lookups.WithLabelValues("error")))
	assert.Equal(t, 8.0, testutil.ToFloat64(obs.size))

	require.True(t, c.TryRemove(ctx, "hello"))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.evictions.WithLabelValues("success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(obs.evictedBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(obs.size))

	c.Cleanup(ctx, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.cleanups))

	obs.OnOverBudget(10, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.overBudget))

	n, err := testutil.GatherAndCount(reg, "test_cache_load_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestObserver_SizeWithoutTracking(t *testing.T) {
	obs := New("idle")
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.size))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.activeLoads))
}

func TestObserver_ActiveLoads(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	obs := New("downloads")
	require.NoError(t, obs.Register(reg))

	rc := resource.NewController(resource.Config{MaxConcurrentLoads: 4})
	obs.TrackActiveLoads(rc.ActiveLoads)

	ctx := context.Background()
	require.NoError(t, rc.AcquireLoad(ctx))
	require.NoError(t, rc.AcquireLoad(ctx))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.activeLoads))

	rc.ReleaseLoad()
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.activeLoads))

	n, err := testutil.GatherAndCount(reg, "downloads_active_loads")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
