package rbac

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

func newQuota(t *testing.T) (*miniredis.Miniredis, *QuotaCounter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewQuotaCounter(client, nil, nil)
}

func TestQuotaConsume_Boundary(t *testing.T) {
	_, quota := newQuota(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-1", 3))
	}

	err := quota.Consume(ctx, "tenant-1", "emp-1", 3)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	used, err := quota.Used(ctx, "tenant-1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, used)
}

func TestQuotaConsume_ZeroLimitUnlimited(t *testing.T) {
	_, quota := newQuota(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-1", 0))
	}

	// Unlimited consumption never touches the counter
	used, err := quota.Used(ctx, "tenant-1", "emp-1")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestQuotaConsume_RaceSafeAtBoundary(t *testing.T) {
	_, quota := newQuota(t)
	const limit = 10

	// 2x limit concurrent consumers: exactly limit succeed, never limit+1
	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 2*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := quota.Consume(context.Background(), "tenant-1", "emp-1", limit); err == nil {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted)
}

func TestQuotaConsume_ActorsIsolated(t *testing.T) {
	_, quota := newQuota(t)
	ctx := context.Background()

	require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-1", 1))
	assert.True(t, IsQuotaExceeded(quota.Consume(ctx, "tenant-1", "emp-1", 1)))

	// A different actor and a different tenant each have their own counter
	require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-2", 1))
	require.NoError(t, quota.Consume(ctx, "tenant-2", "emp-1", 1))
}

func TestQuotaConsume_FailsOpenWhenStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	metrics := observability.NopMetrics()
	quota := NewQuotaCounter(client, metrics, nil)
	mr.Close()

	assert.NoError(t, quota.Consume(context.Background(), "tenant-1", "emp-1", 1))

	// Fail-open is counted against the quota store, not the permission cache
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.QuotaFailOpenTotal))
	assert.Zero(t, testutil.ToFloat64(metrics.CacheDegradedTotal))
}

func TestQuotaReset(t *testing.T) {
	_, quota := newQuota(t)
	ctx := context.Background()

	require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-1", 1))
	assert.True(t, IsQuotaExceeded(quota.Consume(ctx, "tenant-1", "emp-1", 1)))

	require.NoError(t, quota.Reset(ctx, "tenant-1", "emp-1"))
	require.NoError(t, quota.Consume(ctx, "tenant-1", "emp-1", 1))
}
