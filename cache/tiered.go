package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisDataKey  = "cacheval:data"
	redisOrderKey = "cacheval:order"
)

// RedisTier is a remote cache level backed by Redis. The layout mirrors a
// hand-rolled LRU over primitives: a hash holds the answers and a list holds
// the recency order, oldest at the head.
type RedisTier struct {
	rdb      *redis.Client
	capacity int
	logger   *zap.Logger
}

// NewRedisTier creates a Redis-backed cache tier and verifies connectivity.
func NewRedisTier(ctx context.Context, rdb *redis.Client, capacity int, logger *zap.Logger) (*RedisTier, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisTier{
		rdb:      rdb,
		capacity: capacity,
		logger:   logger.With(zap.String("component", "cache_remote")),
	}, nil
}

// Get fetches an answer from the remote tier, refreshing its recency.
func (t *RedisTier) Get(ctx context.Context, key string) (string, error) {
	answer, err := t.rdb.HGet(ctx, redisDataKey, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("remote get: %w", err)
	}

	// refresh LRU position
	t.rdb.LRem(ctx, redisOrderKey, 0, key)
	t.rdb.RPush(ctx, redisOrderKey, key)
	return answer, nil
}

// Put stores an answer in the remote tier, trimming the oldest entries when
// the tier is over capacity.
func (t *RedisTier) Put(ctx context.Context, key, answer string) error {
	exists, err := t.rdb.HExists(ctx, redisDataKey, key).Result()
	if err != nil {
		return fmt.Errorf("remote put: %w", err)
	}
	if exists {
		// refresh only; the first writer's answer stays
		t.rdb.LRem(ctx, redisOrderKey, 0, key)
		t.rdb.RPush(ctx, redisOrderKey, key)
		return nil
	}

	for {
		n, err := t.rdb.LLen(ctx, redisOrderKey).Result()
		if err != nil {
			return fmt.Errorf("remote put: %w", err)
		}
		if n < int64(t.capacity) {
			break
		}
		oldest, err := t.rdb.LPop(ctx, redisOrderKey).Result()
		if err != nil {
			return fmt.Errorf("remote evict: %w", err)
		}
		t.rdb.HDel(ctx, redisDataKey, oldest)
		t.logger.Debug("remote eviction", zap.String("key", oldest))
	}

	if err := t.rdb.HSet(ctx, redisDataKey, key, answer).Err(); err != nil {
		return fmt.Errorf("remote put: %w", err)
	}
	return t.rdb.RPush(ctx, redisOrderKey, key).Err()
}

// Len returns the number of entries in the remote tier.
func (t *RedisTier) Len(ctx context.Context) (int64, error) {
	return t.rdb.LLen(ctx, redisOrderKey).Result()
}

// Flush removes all remote entries.
func (t *RedisTier) Flush(ctx context.Context) error {
	return t.rdb.Del(ctx, redisDataKey, redisOrderKey).Err()
}

// Tiered combines the local Engine with an optional Redis tier. Local is L1,
// Redis is L2; remote hits are backfilled into the local engine. With a nil
// remote tier it degrades to the local engine alone.
type Tiered struct {
	local  *Engine
	remote *RedisTier
	logger *zap.Logger
}

// NewTiered creates the two-level cache. remote may be nil.
func NewTiered(local *Engine, remote *RedisTier, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{local: local, remote: remote, logger: logger}
}

// Lookup consults the local engine first, then the remote tier. Remote
// failures degrade to a miss rather than failing the request.
func (t *Tiered) Lookup(ctx context.Context, key string) (string, bool) {
	if answer, ok := t.local.Lookup(key); ok {
		return answer, true
	}
	if t.remote == nil {
		return "", false
	}

	answer, err := t.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			t.logger.Warn("remote tier lookup failed", zap.Error(err))
		}
		return "", false
	}

	// backfill L1 so the next lookup is local
	if err := t.local.Insert(key, answer, int64(len(answer))); err != nil {
		t.logger.Warn("backfill rejected", zap.String("key", key), zap.Error(err))
	}
	return answer, true
}

// Insert writes to the local engine, then best-effort to the remote tier.
// ErrEntryTooLarge propagates: that is a configuration error, not a glitch.
func (t *Tiered) Insert(ctx context.Context, key, answer string, size int64) error {
	if err := t.local.Insert(key, answer, size); err != nil {
		return err
	}
	if t.remote != nil {
		if err := t.remote.Put(ctx, key, answer); err != nil {
			t.logger.Warn("remote tier insert failed", zap.Error(err))
		}
	}
	return nil
}

// Stats returns the local engine's snapshot.
func (t *Tiered) Stats() Stats {
	return t.local.Stats()
}
