package cache

import (
	"fmt"
	"time"
)

// Entry is a cached answer with the bookkeeping the eviction policies need.
// Owned exclusively by the Engine; mutated only under the Engine's lock.
type Entry struct {
	Key         string
	Answer      string
	Size        int64
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int64

	// recency list hooks, used by the LRU policy
	prev, next *Entry
}

// Policy decides which entry to evict when the Engine is over budget.
// Implementations keep whatever auxiliary ordering they need; all hooks are
// invoked under the Engine's lock, so implementations need no locking of
// their own.
type Policy interface {
	// OnInsert records a newly inserted entry.
	OnInsert(e *Entry)

	// OnHit records a lookup hit on an entry.
	OnHit(e *Entry)

	// OnRemove erases an entry's bookkeeping after eviction or flush.
	OnRemove(e *Entry)

	// Victim selects exactly one entry to evict. Returns nil only when the
	// policy tracks no entries. Selection is deterministic: ties break by
	// lowest access count, then by oldest creation time.
	Victim() *Entry

	// Expired reports whether an entry must be treated as a miss. Only the
	// TTL policy ever returns true.
	Expired(e *Entry, now time.Time) bool

	// Name returns the policy name for logs and stats.
	Name() string
}

// NewPolicy creates an eviction policy by name: "lru", "lfu" or "ttl".
func NewPolicy(name string, ttl time.Duration) (Policy, error) {
	switch name {
	case "lru", "":
		return NewLRU(), nil
	case "lfu":
		return NewLFU(), nil
	case "ttl":
		if ttl <= 0 {
			return nil, fmt.Errorf("ttl policy requires a positive ttl, got %s", ttl)
		}
		return NewTTL(ttl), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", name)
	}
}

// olderVictim applies the shared tie-break rule between two candidates:
// lowest access count first, then oldest creation time.
func olderVictim(a, b *Entry) *Entry {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.AccessCount != a.AccessCount {
		if b.AccessCount < a.AccessCount {
			return b
		}
		return a
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return b
	}
	return a
}
