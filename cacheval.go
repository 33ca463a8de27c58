// Package cacheval provides a top-level convenience entry point for building
// an in-process caching proxy with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/cacheval"
//
//	r, err := cacheval.New(cacheval.WithStore(store))
//	r, err := cacheval.New(cacheval.WithStore(store), cacheval.WithPolicy("lfu"))
//	r, err := cacheval.New(cacheval.WithStore(store), cacheval.WithGenerator(myBackend))
//
// The returned [proxy.Router] serves lookups cache-first and coalesces
// concurrent misses for the same question into a single upstream call.
// Use this package when you want the evaluation loop in-process instead of
// running the cacheval server.
package cacheval

import (
	"errors"
	"time"

	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/scorer"
	"github.com/BaSui01/cacheval/upstream"

	"go.uber.org/zap"
)

// Option configures the router created by [New].
type Option func(*settings)

type settings struct {
	store     *corpus.Store
	generator upstream.Generator
	logger    *zap.Logger
	eventLog  *events.Log

	capacity   int
	byteBudget int64
	policy     string
	ttl        time.Duration
	keyMode    cache.KeyMode
	timeout    time.Duration
	inflight   int
}

// WithStore sets the corpus store backing question lookups and score writes.
// A store is required.
func WithStore(s *corpus.Store) Option {
	return func(o *settings) { o.store = s }
}

// WithGenerator sets the upstream answer generator. Defaults to the
// deterministic simulated backend.
func WithGenerator(g upstream.Generator) Option {
	return func(o *settings) { o.generator = g }
}

// WithCapacity sets the cache entry capacity.
func WithCapacity(n int) Option {
	return func(o *settings) { o.capacity = n }
}

// WithByteBudget bounds the total cached answer bytes. Zero disables the budget.
func WithByteBudget(n int64) Option {
	return func(o *settings) { o.byteBudget = n }
}

// WithPolicy selects the eviction policy: "lru", "lfu", or "ttl".
func WithPolicy(name string) Option {
	return func(o *settings) { o.policy = name }
}

// WithTTL sets the entry lifetime for the "ttl" policy.
func WithTTL(d time.Duration) Option {
	return func(o *settings) { o.ttl = d }
}

// WithKeyMode selects how cache keys are derived from requests.
func WithKeyMode(mode cache.KeyMode) Option {
	return func(o *settings) { o.keyMode = mode }
}

// WithUpstreamTimeout bounds each upstream generation call.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(o *settings) { o.timeout = d }
}

// WithMaxConcurrent caps the number of in-flight upstream calls.
func WithMaxConcurrent(n int) Option {
	return func(o *settings) { o.inflight = n }
}

// WithEventLog records one RequestEvent per request into log.
func WithEventLog(log *events.Log) Option {
	return func(o *settings) { o.eventLog = log }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *settings) { o.logger = logger }
}

// New creates a [proxy.Router] with minimal configuration. At minimum, a
// corpus store must be provided via [WithStore].
func New(opts ...Option) (*proxy.Router, error) {
	defaults := config.DefaultCacheConfig()
	o := settings{
		capacity:   defaults.Capacity,
		byteBudget: defaults.ByteBudget,
		policy:     defaults.Policy,
		ttl:        defaults.TTL,
		keyMode:    cache.KeyMode(defaults.KeyMode),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		return nil, errors.New("cacheval: a corpus store is required, use WithStore")
	}

	if o.generator == nil {
		gen, err := upstream.New(config.DefaultUpstreamConfig(), o.logger)
		if err != nil {
			return nil, err
		}
		o.generator = gen
	}

	policy, err := cache.NewPolicy(o.policy, o.ttl)
	if err != nil {
		return nil, err
	}
	engine := cache.NewEngine(cache.Config{
		Capacity:   o.capacity,
		ByteBudget: o.byteBudget,
	}, policy, o.logger)

	return proxy.NewRouter(
		cache.NewTiered(engine, nil, o.logger),
		o.store,
		scorer.New(o.store, o.logger),
		o.generator,
		o.eventLog,
		nil,
		nil,
		proxy.Options{
			KeyMode:         o.keyMode,
			UpstreamTimeout: o.timeout,
			MaxConcurrent:   o.inflight,
		},
		o.logger,
	), nil
}
