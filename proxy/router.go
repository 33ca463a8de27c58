// ===== 🎯 请求路由：缓存优先,未命中合并回源 =====

package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/internal/metrics"
	"github.com/BaSui01/cacheval/types"
	"github.com/BaSui01/cacheval/upstream"
)

// Answer sources reported in results.
const (
	SourceCache = "cache"
	SourceLLM   = "llm"
)

// Cache is the storage surface the router needs. *cache.Tiered satisfies it.
type Cache interface {
	Lookup(ctx context.Context, key string) (string, bool)
	Insert(ctx context.Context, key, answer string, size int64) error
	Stats() cache.Stats
}

// QuestionSource resolves question ids to their text. *corpus.Store
// satisfies it.
type QuestionSource interface {
	GetQuestion(ctx context.Context, id uint) (string, error)
}

// ScoreRecorder receives per-request scoring write-backs. RecordHit
// returns the persisted quality score for the cached answer.
// *scorer.Scorer satisfies it.
type ScoreRecorder interface {
	ScoreAndSave(ctx context.Context, id uint, generated string) (float64, error)
	RecordHit(ctx context.Context, id uint) (float64, error)
}

// Result is the outcome of one routed request.
type Result struct {
	RequestID  string         `json:"request_id"`
	QuestionID uint           `json:"question_id"`
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Source     string         `json:"source"`
	Score      float64        `json:"score"`
	Tokens     int            `json:"tokens,omitempty"`
	Coalesced  bool           `json:"coalesced,omitempty"`
	Outcome    events.Outcome `json:"outcome"`
	Latency    time.Duration  `json:"latency_ns"`
}

// Options tunes router behavior beyond its collaborators.
type Options struct {
	// KeyMode selects how cache keys are derived from requests.
	KeyMode cache.KeyMode
	// UpstreamTimeout bounds one upstream call, leader included.
	UpstreamTimeout time.Duration
	// MaxConcurrent caps in-flight upstream calls.
	MaxConcurrent int
}

// Router serves answer requests cache first. Concurrent misses on the same
// key share a single upstream call; only the successful answer is inserted,
// so a failed call never poisons the cache.
type Router struct {
	cache    Cache
	source   QuestionSource
	scores   ScoreRecorder
	upstream upstream.Generator

	log       *events.Log
	broadcast *events.Broadcaster
	collector *metrics.Collector

	flight  singleflight.Group
	sem     *semaphore.Weighted
	keyMode cache.KeyMode
	timeout time.Duration

	tracer trace.Tracer
	logger *zap.Logger
}

// flightOutcome is the value shared across a coalesced flight.
type flightOutcome struct {
	answer *upstream.Answer
	score  float64
}

// NewRouter wires the router. log and broadcast may be nil when event
// recording is not wanted; collector may be nil in tests.
func NewRouter(
	c Cache,
	source QuestionSource,
	scores ScoreRecorder,
	gen upstream.Generator,
	log *events.Log,
	broadcast *events.Broadcaster,
	collector *metrics.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cache:     c,
		source:    source,
		scores:    scores,
		upstream:  gen,
		log:       log,
		broadcast: broadcast,
		collector: collector,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		keyMode:   opts.KeyMode,
		timeout:   opts.UpstreamTimeout,
		tracer:    otel.Tracer("cacheval/proxy"),
		logger:    logger.With(zap.String("component", "proxy")),
	}
}

// Handle serves one request for questionID. Every call produces exactly one
// event, errors included.
func (r *Router) Handle(ctx context.Context, questionID uint) (*Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "proxy.Handle",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.Int64("question.id", int64(questionID)),
		))
	defer span.End()

	question, err := r.source.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			err = types.NewError(types.ErrNotFound, "question not found").
				WithHTTPStatus(404).WithCause(err)
		}
		return r.fail(ctx, span, requestID, questionID, start, false, err)
	}

	key := cache.DeriveKey(r.keyMode, questionID, question)
	span.SetAttributes(attribute.String("cache.key", key))

	if answer, ok := r.cache.Lookup(ctx, key); ok {
		if r.collector != nil {
			r.collector.RecordCacheHit("tiered")
		}
		score, err := r.scores.RecordHit(ctx, questionID)
		if err != nil {
			r.logger.Warn("hit count update failed",
				zap.Uint("question_id", questionID), zap.Error(err))
		}
		span.SetAttributes(attribute.String("outcome", string(events.OutcomeHit)))
		res := &Result{
			RequestID:  requestID,
			QuestionID: questionID,
			Question:   question,
			Answer:     answer,
			Source:     SourceCache,
			Score:      score,
			Outcome:    events.OutcomeHit,
			Latency:    time.Since(start),
		}
		r.record(res, "")
		return res, nil
	}

	if r.collector != nil {
		r.collector.RecordCacheMiss("tiered")
	}
	ch := r.flight.DoChan(key, func() (any, error) {
		return r.generate(ctx, questionID, question, key)
	})

	select {
	case fr := <-ch:
		if fr.Err != nil {
			return r.fail(ctx, span, requestID, questionID, start, fr.Shared, fr.Err)
		}
		out := fr.Val.(*flightOutcome)
		if fr.Shared {
			if r.collector != nil {
				r.collector.RecordCoalesced()
			}
		}
		span.SetAttributes(
			attribute.String("outcome", string(events.OutcomeMiss)),
			attribute.Bool("coalesced", fr.Shared),
		)
		res := &Result{
			RequestID:  requestID,
			QuestionID: questionID,
			Question:   question,
			Answer:     out.answer.Text,
			Source:     SourceLLM,
			Score:      out.score,
			Tokens:     out.answer.Tokens,
			Coalesced:  fr.Shared,
			Outcome:    events.OutcomeMiss,
			Latency:    time.Since(start),
		}
		r.record(res, "")
		return res, nil

	case <-ctx.Done():
		// this waiter leaves; the in-flight call keeps running for others
		return r.fail(ctx, span, requestID, questionID, start, true, waiterErr(ctx.Err()))
	}
}

// generate is the single upstream call behind a coalesced flight. It runs
// on a context detached from the leader's cancellation so one impatient
// caller cannot abort the call for everyone sharing it.
func (r *Router) generate(ctx context.Context, questionID uint, question, key string) (*flightOutcome, error) {
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	// A request that missed just as an earlier flight for this key
	// completed starts a fresh flight; the answer is already cached, so
	// serve it instead of calling upstream again.
	if answer, ok := r.cache.Lookup(gctx, key); ok {
		score, err := r.scores.RecordHit(gctx, questionID)
		if err != nil {
			r.logger.Warn("hit count update failed",
				zap.Uint("question_id", questionID), zap.Error(err))
		}
		return &flightOutcome{answer: &upstream.Answer{Text: answer}, score: score}, nil
	}

	if err := r.sem.Acquire(gctx, 1); err != nil {
		return nil, types.NewError(types.ErrUpstreamTimeout, "timed out waiting for upstream slot").
			WithHTTPStatus(504).WithRetryable(true).WithCause(err)
	}
	defer r.sem.Release(1)

	callStart := time.Now()
	answer, err := r.upstream.Generate(gctx, question)
	if r.collector != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		tokens := 0
		if answer != nil {
			tokens = answer.Tokens
		}
		r.collector.RecordUpstreamCall(r.upstream.Name(), status, time.Since(callStart), tokens)
	}
	if err != nil {
		return nil, err
	}

	score, err := r.scores.ScoreAndSave(gctx, questionID, answer.Text)
	if err != nil {
		r.logger.Warn("scoring failed",
			zap.Uint("question_id", questionID), zap.Error(err))
	}

	if err := r.cache.Insert(gctx, key, answer.Text, int64(len(answer.Text))); err != nil {
		if errors.Is(err, cache.ErrEntryTooLarge) {
			r.logger.Warn("answer exceeds cache byte budget", zap.String("key", key))
		} else {
			r.logger.Error("cache insert failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &flightOutcome{answer: answer, score: score}, nil
}

// fail records an ERROR outcome and returns err unchanged.
func (r *Router) fail(ctx context.Context, span trace.Span, requestID string, questionID uint, start time.Time, coalesced bool, err error) (*Result, error) {
	code := types.CodeOf(err)
	span.SetAttributes(
		attribute.String("outcome", string(events.OutcomeError)),
		attribute.String("error.code", string(code)),
	)
	span.RecordError(err)

	res := &Result{
		RequestID:  requestID,
		QuestionID: questionID,
		Coalesced:  coalesced,
		Outcome:    events.OutcomeError,
		Latency:    time.Since(start),
	}
	r.record(res, code)

	r.logger.Warn("request failed",
		zap.String("request_id", requestID),
		zap.Uint("question_id", questionID),
		zap.String("code", string(code)),
		zap.Error(err),
	)
	return res, err
}

// record emits the per-request event and outcome metrics.
func (r *Router) record(res *Result, code types.ErrorCode) {
	ev := events.RequestEvent{
		RequestID:  res.RequestID,
		QuestionID: res.QuestionID,
		Outcome:    res.Outcome,
		ErrorCode:  code,
		Answer:     res.Answer,
		Tokens:     res.Tokens,
		Score:      res.Score,
		Coalesced:  res.Coalesced,
		Latency:    res.Latency,
		Timestamp:  time.Now(),
	}
	if r.log != nil {
		r.log.Append(ev)
	}
	if r.broadcast != nil {
		r.broadcast.Publish(ev)
	}
	if r.collector != nil {
		r.collector.RecordRequest(string(res.Outcome), res.Latency)
	}
}

// Stats returns the cache snapshot behind the router.
func (r *Router) Stats() cache.Stats {
	return r.cache.Stats()
}

// waiterErr maps a waiter's context error onto the harness codes.
func waiterErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "timed out waiting for answer").
			WithHTTPStatus(504).WithRetryable(true).WithCause(err)
	}
	return types.NewError(types.ErrCanceled, "request canceled").WithCause(err)
}
