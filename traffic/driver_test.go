package traffic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/config"
)

func countingFn(counter *atomic.Int64) RequestFunc {
	return func(ctx context.Context, questionID uint) error {
		counter.Add(1)
		return nil
	}
}

func TestDriverClosedLoop(t *testing.T) {
	var served atomic.Int64
	d := NewDriver(config.TrafficConfig{
		Loop:        "closed",
		Concurrency: 4,
		Requests:    100,
		Seed:        42,
	}, countingFn(&served), zap.NewNop())

	stats, err := d.Run(context.Background(), []uint{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Requests)
	assert.Zero(t, stats.Errors)
	assert.EqualValues(t, 100, served.Load())
}

func TestDriverDeterministicSchedule(t *testing.T) {
	record := func() (RequestFunc, *[]uint, *sync.Mutex) {
		var mu sync.Mutex
		var got []uint
		return func(ctx context.Context, id uint) error {
			mu.Lock()
			got = append(got, id)
			mu.Unlock()
			return nil
		}, &got, &mu
	}

	cfg := config.TrafficConfig{Loop: "closed", Concurrency: 1, Requests: 20, Seed: 42}
	ids := []uint{1, 2, 3, 4, 5, 6, 7, 8}

	fn1, got1, _ := record()
	_, err := NewDriver(cfg, fn1, zap.NewNop()).Run(context.Background(), ids)
	require.NoError(t, err)

	fn2, got2, _ := record()
	_, err = NewDriver(cfg, fn2, zap.NewNop()).Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, *got1, *got2)
}

func TestDriverMaxQuestions(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint]bool)
	fn := func(ctx context.Context, id uint) error {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return nil
	}

	d := NewDriver(config.TrafficConfig{
		Loop:         "closed",
		Concurrency:  2,
		Requests:     200,
		MaxQuestions: 3,
		Seed:         42,
	}, fn, zap.NewNop())

	_, err := d.Run(context.Background(), []uint{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	for id := range seen {
		assert.LessOrEqual(t, id, uint(3))
	}
}

func TestDriverCountsErrors(t *testing.T) {
	var n atomic.Int64
	fn := func(ctx context.Context, id uint) error {
		if n.Add(1)%2 == 0 {
			return errors.New("boom")
		}
		return nil
	}

	d := NewDriver(config.TrafficConfig{
		Loop:        "closed",
		Concurrency: 1,
		Requests:    10,
		Seed:        42,
	}, fn, zap.NewNop())

	stats, err := d.Run(context.Background(), []uint{1})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Requests)
	assert.Equal(t, 5, stats.Errors)
}

func TestDriverOpenLoopUniform(t *testing.T) {
	var served atomic.Int64
	d := NewDriver(config.TrafficConfig{
		Mode:     "uniform",
		Loop:     "open",
		Rate:     200,
		Requests: 10,
		Seed:     42,
	}, countingFn(&served), zap.NewNop())

	stats, err := d.Run(context.Background(), []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Requests)
	assert.EqualValues(t, 10, served.Load())
}

func TestDriverOpenLoopPoisson(t *testing.T) {
	var served atomic.Int64
	d := NewDriver(config.TrafficConfig{
		Mode:     "poisson",
		Loop:     "open",
		Rate:     500,
		Requests: 10,
		Seed:     42,
	}, countingFn(&served), zap.NewNop())

	stats, err := d.Run(context.Background(), []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Requests)
	assert.EqualValues(t, 10, served.Load())
}

func TestDriverOpenLoopRequiresRate(t *testing.T) {
	d := NewDriver(config.TrafficConfig{
		Loop:     "open",
		Requests: 5,
		Seed:     42,
	}, countingFn(new(atomic.Int64)), zap.NewNop())

	_, err := d.Run(context.Background(), []uint{1})
	assert.Error(t, err)
}

func TestDriverCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var served atomic.Int64
	fn := func(ctx context.Context, id uint) error {
		if served.Add(1) == 3 {
			cancel()
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}

	d := NewDriver(config.TrafficConfig{
		Loop:        "closed",
		Concurrency: 1,
		Requests:    1000,
		Seed:        42,
	}, fn, zap.NewNop())

	stats, err := d.Run(ctx, []uint{1, 2})
	require.Error(t, err)
	assert.Less(t, stats.Requests, 1000)
}

func TestDriverEmptyQuestionSet(t *testing.T) {
	d := NewDriver(config.TrafficConfig{Loop: "closed", Requests: 5, Seed: 42},
		countingFn(new(atomic.Int64)), zap.NewNop())

	_, err := d.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestDriverUnsupportedLoop(t *testing.T) {
	d := NewDriver(config.TrafficConfig{Loop: "spiral", Requests: 5, Seed: 42},
		countingFn(new(atomic.Int64)), zap.NewNop())

	_, err := d.Run(context.Background(), []uint{1})
	assert.Error(t, err)
}
