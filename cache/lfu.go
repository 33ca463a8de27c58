package cache

import "time"

// LFU evicts the least frequently used entry. The scan over tracked entries
// is O(n); at evaluation-harness capacities that is cheaper than maintaining
// frequency buckets, and keeps the victim selection trivially deterministic.
type LFU struct {
	entries map[*Entry]struct{}
}

// NewLFU creates an LFU policy.
func NewLFU() *LFU {
	return &LFU{entries: make(map[*Entry]struct{})}
}

// Name returns "lfu".
func (p *LFU) Name() string { return "lfu" }

// OnInsert starts tracking the entry.
func (p *LFU) OnInsert(e *Entry) {
	p.entries[e] = struct{}{}
}

// OnHit is a no-op; frequency lives on the entry itself.
func (p *LFU) OnHit(*Entry) {}

// OnRemove stops tracking the entry.
func (p *LFU) OnRemove(e *Entry) {
	delete(p.entries, e)
}

// Victim returns the entry with the lowest access count, ties broken by
// oldest creation time.
func (p *LFU) Victim() *Entry {
	var victim *Entry
	for e := range p.entries {
		victim = olderVictim(victim, e)
	}
	return victim
}

// Expired always reports false; LFU entries do not age out.
func (p *LFU) Expired(*Entry, time.Time) bool { return false }
