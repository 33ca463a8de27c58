package cache

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCacheMiss indicates cache miss.
var ErrCacheMiss = errors.New("cache miss")

// ErrEntryTooLarge indicates an entry that exceeds the total byte budget and
// can therefore never fit. This is a configuration error: the operator set a
// budget smaller than a single answer.
var ErrEntryTooLarge = errors.New("cache: entry exceeds total byte budget")

// Config configures the local cache engine.
type Config struct {
	// Capacity is the maximum number of entries. Must be positive.
	Capacity int `json:"capacity"`
	// ByteBudget bounds the total answer bytes. Zero disables the budget.
	ByteBudget int64 `json:"byte_budget"`
}

// Stats is a consistent point-in-time snapshot of the engine counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
	Policy    string `json:"policy"`
}

// Engine owns the key→entry table and enforces capacity through the
// configured eviction policy. Safe for concurrent use; a single mutex guards
// the table and the policy's auxiliary structures, and no I/O ever happens
// inside the critical section.
type Engine struct {
	mu        sync.Mutex
	items     map[string]*Entry
	policy    Policy
	capacity  int
	budget    int64
	bytes     int64
	hits      uint64
	misses    uint64
	evictions uint64
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a cache engine with the given policy.
func NewEngine(cfg Config, policy Policy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		items:    make(map[string]*Entry, cfg.Capacity),
		policy:   policy,
		capacity: cfg.Capacity,
		budget:   cfg.ByteBudget,
		logger:   logger.With(zap.String("component", "cache_engine")),
		now:      time.Now,
	}
}

// Lookup returns the cached answer for key. A hit updates the recency and
// frequency bookkeeping; a miss has no side effect beyond the miss counter.
func (e *Engine) Lookup(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.items[key]
	if !ok {
		e.misses++
		return "", false
	}

	now := e.now()
	if e.policy.Expired(entry, now) {
		e.remove(entry)
		e.misses++
		return "", false
	}

	entry.LastAccess = now
	entry.AccessCount++
	e.policy.OnHit(entry)
	e.hits++
	return entry.Answer, true
}

// Insert stores an answer under key, evicting per policy until it fits.
// If the key is already present the insert is a no-op: the first writer
// wins, so racing misses for the same key never discard each other's work
// unpredictably. Returns ErrEntryTooLarge when the entry can never fit.
func (e *Engine) Insert(key, answer string, size int64) error {
	if e.budget > 0 && size > e.budget {
		return ErrEntryTooLarge
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.items[key]; ok {
		// first-writer-wins
		return nil
	}

	for len(e.items) >= e.capacity || (e.budget > 0 && e.bytes+size > e.budget) {
		victim := e.policy.Victim()
		if victim == nil {
			break
		}
		e.remove(victim)
		e.evictions++
		e.logger.Debug("evicted entry",
			zap.String("key", victim.Key),
			zap.Int64("size", victim.Size),
			zap.String("policy", e.policy.Name()),
		)
	}

	now := e.now()
	entry := &Entry{
		Key:        key,
		Answer:     answer,
		Size:       size,
		CreatedAt:  now,
		LastAccess: now,
	}
	e.items[key] = entry
	e.bytes += size
	e.policy.OnInsert(entry)
	return nil
}

// Contains reports whether key is cached, without touching any bookkeeping.
func (e *Engine) Contains(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.items[key]
	if !ok {
		return false
	}
	return !e.policy.Expired(entry, e.now())
}

// Stats returns a consistent snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Hits:      e.hits,
		Misses:    e.misses,
		Evictions: e.evictions,
		Entries:   len(e.items),
		Bytes:     e.bytes,
		Policy:    e.policy.Name(),
	}
}

// Len returns the current entry count.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Flush discards every entry. Counters are preserved.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.items {
		e.policy.OnRemove(entry)
	}
	e.items = make(map[string]*Entry, e.capacity)
	e.bytes = 0
}

// Keys returns the cached keys in no particular order.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.items))
	for k := range e.items {
		keys = append(keys, k)
	}
	return keys
}

// remove deletes an entry from the table and the policy. Caller holds e.mu.
func (e *Engine) remove(entry *Entry) {
	e.policy.OnRemove(entry)
	delete(e.items, entry.Key)
	e.bytes -= entry.Size
}
