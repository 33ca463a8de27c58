package upstream

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/types"
)

// simulatedModel is the model name reported by the simulated backend.
const simulatedModel = "simulated-v1"

// Simulated is a deterministic stand-in for a real language model backend.
// The answer text is a pure function of the question, so repeated requests
// for the same question always produce the same answer. Latency is fixed
// and fault injection draws from a seeded source shared across requests.
type Simulated struct {
	latency       time.Duration
	errorRate     float64
	rateLimitRate float64
	counter       *TokenCounter
	logger        *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates the simulated generator from configuration.
func NewSimulated(cfg config.UpstreamConfig, counter *TokenCounter, logger *zap.Logger) *Simulated {
	return &Simulated{
		latency:       cfg.Latency,
		errorRate:     cfg.ErrorRate,
		rateLimitRate: cfg.RateLimitRate,
		counter:       counter,
		logger:        logger.With(zap.String("component", "upstream.simulated")),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Name returns the generator identifier.
func (s *Simulated) Name() string { return "simulated" }

// Generate waits the configured latency and returns the deterministic
// answer for question. Cancellation during the wait aborts the call.
func (s *Simulated) Generate(ctx context.Context, question string) (*Answer, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, mapContextErr(ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return nil, mapContextErr(err)
	}

	if err := s.injectFault(); err != nil {
		s.logger.Debug("injected fault", zap.Error(err))
		return nil, err
	}

	text := s.answerFor(question)
	return &Answer{
		Text:   text,
		Tokens: s.counter.Count(text),
		Model:  simulatedModel,
	}, nil
}

// answerFor derives the canonical answer for a question. The question hash
// seeds a private source so the text never varies between calls.
func (s *Simulated) answerFor(question string) string {
	h := fnv.New64a()
	h.Write([]byte(question))
	rng := rand.New(rand.NewSource(int64(h.Sum64() % 10000)))

	// Truncate on runes; corpus questions are Spanish and a byte cut
	// could split an accented character.
	preview := question
	if runes := []rune(preview); len(runes) > 20 {
		preview = string(runes[:20])
	}
	return fmt.Sprintf("Answer %d: regarding %q, this is a well established fact.",
		rng.Intn(9000)+1000, preview)
}

// injectFault rolls the configured failure probabilities.
func (s *Simulated) injectFault() error {
	if s.errorRate <= 0 && s.rateLimitRate <= 0 {
		return nil
	}
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll < s.rateLimitRate {
		return types.NewError(types.ErrRateLimited, "simulated backend rate limited").
			WithHTTPStatus(429).WithRetryable(true)
	}
	if roll < s.rateLimitRate+s.errorRate {
		return types.NewError(types.ErrUpstreamError, "simulated backend failure").
			WithHTTPStatus(502).WithRetryable(true)
	}
	return nil
}

// mapContextErr converts a context error into the harness error codes.
func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "upstream call timed out").
			WithHTTPStatus(504).WithRetryable(true).WithCause(err)
	}
	return types.NewError(types.ErrCanceled, "upstream call canceled").WithCause(err)
}
