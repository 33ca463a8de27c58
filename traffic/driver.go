// ===== 🎯 流量驱动：按到达分布回放评测负载 =====

package traffic

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/cacheval/config"
)

// RequestFunc serves one question. The driver does not interpret the
// result beyond error counting; outcome recording happens downstream.
type RequestFunc func(ctx context.Context, questionID uint) error

// RunStats summarizes one driver run.
type RunStats struct {
	Requests int           `json:"requests"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// Driver replays a synthetic workload against a request function. The
// question sequence and arrival schedule are derived from the configured
// seed, so the same configuration always produces the same run.
type Driver struct {
	cfg    config.TrafficConfig
	fn     RequestFunc
	logger *zap.Logger
}

// NewDriver creates a driver over the given request function.
func NewDriver(cfg config.TrafficConfig, fn RequestFunc, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:    cfg,
		fn:     fn,
		logger: logger.With(zap.String("component", "traffic")),
	}
}

// schedule draws the full question sequence up front. Selection is uniform
// over ids with replacement, matching repeated-question workloads.
func (d *Driver) schedule(ids []uint, rng *rand.Rand) []uint {
	seq := make([]uint, d.cfg.Requests)
	for i := range seq {
		seq[i] = ids[rng.Intn(len(ids))]
	}
	return seq
}

// Run replays the workload over the candidate question ids and blocks until
// every issued request finishes or ctx is canceled.
func (d *Driver) Run(ctx context.Context, ids []uint) (*RunStats, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("traffic run: no questions to replay")
	}
	if d.cfg.Requests <= 0 {
		return &RunStats{}, nil
	}
	if d.cfg.MaxQuestions > 0 && len(ids) > d.cfg.MaxQuestions {
		ids = ids[:d.cfg.MaxQuestions]
	}

	rng := rand.New(rand.NewSource(d.cfg.Seed))
	seq := d.schedule(ids, rng)

	d.logger.Info("traffic run starting",
		zap.String("mode", d.cfg.Mode),
		zap.String("loop", d.cfg.Loop),
		zap.Int("requests", len(seq)),
		zap.Int("questions", len(ids)),
	)

	start := time.Now()
	var errs atomic.Int64
	issued, err := d.replay(ctx, seq, rng, &errs)

	stats := &RunStats{
		Requests: issued,
		Errors:   int(errs.Load()),
		Duration: time.Since(start),
	}
	d.logger.Info("traffic run finished",
		zap.Int("requests", stats.Requests),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration),
	)
	return stats, err
}

func (d *Driver) replay(ctx context.Context, seq []uint, rng *rand.Rand, errs *atomic.Int64) (int, error) {
	switch d.cfg.Loop {
	case "open":
		return d.replayOpen(ctx, seq, rng, errs)
	case "closed", "":
		return d.replayClosed(ctx, seq, errs)
	default:
		return 0, fmt.Errorf("unsupported traffic loop %q", d.cfg.Loop)
	}
}

// replayClosed keeps a fixed number of workers busy until the sequence is
// exhausted. No pacing; each worker fires back to back.
func (d *Driver) replayClosed(ctx context.Context, seq []uint, errs *atomic.Int64) (int, error) {
	concurrency := d.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	work := make(chan uint)
	g, ctx := errgroup.WithContext(ctx)

	var issued atomic.Int64
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for id := range work {
				issued.Add(1)
				if err := d.fn(ctx, id); err != nil {
					errs.Add(1)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		for _, id := range seq {
			select {
			case work <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	return int(issued.Load()), err
}

// replayOpen paces arrivals by the configured distribution and dispatches
// each request on its own goroutine so slow responses never delay later
// arrivals.
func (d *Driver) replayOpen(ctx context.Context, seq []uint, rng *rand.Rand, errs *atomic.Int64) (int, error) {
	if d.cfg.Rate <= 0 {
		return 0, fmt.Errorf("open loop requires a positive rate")
	}

	var limiter *rate.Limiter
	if d.cfg.Mode != "poisson" {
		limiter = rate.NewLimiter(rate.Limit(d.cfg.Rate), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	var issued atomic.Int64

	for _, id := range seq {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		} else {
			// exponential inter-arrival time with mean 1/rate
			wait := time.Duration(rng.ExpFloat64() / d.cfg.Rate * float64(time.Second))
			if err := sleepCtx(ctx, wait); err != nil {
				break
			}
		}

		id := id
		issued.Add(1)
		g.Go(func() error {
			if err := d.fn(gctx, id); err != nil {
				errs.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return int(issued.Load()), ctxErr
	}
	return int(issued.Load()), err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
