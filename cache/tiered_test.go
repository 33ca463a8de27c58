package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRemoteTier(t *testing.T, capacity int) (*miniredis.Miniredis, *RedisTier) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier, err := NewRedisTier(context.Background(), rdb, capacity, zap.NewNop())
	require.NoError(t, err)
	return mr, tier
}

func TestRedisTier_PutAndGet(t *testing.T) {
	_, tier := setupRemoteTier(t, 4)
	ctx := context.Background()

	require.NoError(t, tier.Put(ctx, "k1", "cached answer"))

	got, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "cached answer", got)
}

func TestRedisTier_MissReturnsSentinel(t *testing.T) {
	_, tier := setupRemoteTier(t, 4)

	_, err := tier.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisTier_EvictsOldestAtCapacity(t *testing.T) {
	_, tier := setupRemoteTier(t, 2)
	ctx := context.Background()

	require.NoError(t, tier.Put(ctx, "a", "1"))
	require.NoError(t, tier.Put(ctx, "b", "2"))

	// touch "a" so "b" becomes the oldest
	_, err := tier.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, tier.Put(ctx, "c", "3"))

	_, err = tier.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisTier_PutExistingRefreshesOnly(t *testing.T) {
	_, tier := setupRemoteTier(t, 4)
	ctx := context.Background()

	require.NoError(t, tier.Put(ctx, "k", "first"))
	require.NoError(t, tier.Put(ctx, "k", "second"))

	got, err := tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", got, "first writer wins on the remote tier too")

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTiered_LocalOnly(t *testing.T) {
	local := NewEngine(Config{Capacity: 4}, NewLRU(), zap.NewNop())
	tiered := NewTiered(local, nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, tiered.Insert(ctx, "k", "v", 1))

	got, ok := tiered.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = tiered.Lookup(ctx, "absent")
	assert.False(t, ok)
}

func TestTiered_RemoteHitBackfillsLocal(t *testing.T) {
	_, tier := setupRemoteTier(t, 4)
	local := NewEngine(Config{Capacity: 4}, NewLRU(), zap.NewNop())
	tiered := NewTiered(local, tier, zap.NewNop())
	ctx := context.Background()

	// seed the remote tier behind the local engine's back
	require.NoError(t, tier.Put(ctx, "k", "remote answer"))
	require.False(t, local.Contains("k"))

	got, ok := tiered.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "remote answer", got)
	assert.True(t, local.Contains("k"), "remote hit must backfill L1")
}

func TestTiered_InsertWritesBothLevels(t *testing.T) {
	mr, tier := setupRemoteTier(t, 4)
	local := NewEngine(Config{Capacity: 4}, NewLRU(), zap.NewNop())
	tiered := NewTiered(local, tier, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, tiered.Insert(ctx, "k", "v", 1))
	assert.True(t, local.Contains("k"))
	assert.True(t, mr.Exists(redisDataKey))
}

func TestTiered_RemoteFailureDegradesToMiss(t *testing.T) {
	mr, tier := setupRemoteTier(t, 4)
	local := NewEngine(Config{Capacity: 4}, NewLRU(), zap.NewNop())
	tiered := NewTiered(local, tier, zap.NewNop())
	ctx := context.Background()

	mr.Close()

	_, ok := tiered.Lookup(ctx, "k")
	assert.False(t, ok)

	// inserts still succeed locally
	require.NoError(t, tiered.Insert(ctx, "k", "v", 1))
	got, ok := tiered.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestTiered_ManyInsertsRespectRemoteCapacity(t *testing.T) {
	_, tier := setupRemoteTier(t, 3)
	local := NewEngine(Config{Capacity: 10}, NewLRU(), zap.NewNop())
	tiered := NewTiered(local, tier, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, tiered.Insert(ctx, fmt.Sprintf("k%d", i), "v", 1))
	}

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
