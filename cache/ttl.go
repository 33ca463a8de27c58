package cache

import "time"

// TTL expires entries after a fixed lifetime. Expired entries read as misses
// and are reclaimed on lookup; when the engine still needs room, the entry
// closest to expiry (the oldest) is evicted first.
type TTL struct {
	ttl     time.Duration
	entries map[*Entry]struct{}
}

// NewTTL creates a TTL policy with the given entry lifetime.
func NewTTL(ttl time.Duration) *TTL {
	return &TTL{ttl: ttl, entries: make(map[*Entry]struct{})}
}

// Name returns "ttl".
func (p *TTL) Name() string { return "ttl" }

// OnInsert starts tracking the entry.
func (p *TTL) OnInsert(e *Entry) {
	p.entries[e] = struct{}{}
}

// OnHit is a no-op; lifetime is measured from creation, not last access.
func (p *TTL) OnHit(*Entry) {}

// OnRemove stops tracking the entry.
func (p *TTL) OnRemove(e *Entry) {
	delete(p.entries, e)
}

// Victim returns the oldest entry, ties broken by lowest access count.
func (p *TTL) Victim() *Entry {
	var victim *Entry
	for e := range p.entries {
		victim = earlierCreated(victim, e)
	}
	return victim
}

// Expired reports whether the entry has outlived its ttl.
func (p *TTL) Expired(e *Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= p.ttl
}

// earlierCreated prefers the entry created first, then the one with the
// lower access count.
func earlierCreated(a, b *Entry) *Entry {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if !b.CreatedAt.Equal(a.CreatedAt) {
		if b.CreatedAt.Before(a.CreatedAt) {
			return b
		}
		return a
	}
	if b.AccessCount < a.AccessCount {
		return b
	}
	return a
}
