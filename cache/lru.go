package cache

import "time"

// LRU evicts the least recently used entry. Recency is tracked with an
// intrusive doubly-linked list: head is most recent, tail is the victim.
type LRU struct {
	head *Entry
	tail *Entry
}

// NewLRU creates an LRU policy.
func NewLRU() *LRU {
	return &LRU{}
}

// Name returns "lru".
func (p *LRU) Name() string { return "lru" }

// OnInsert places the entry at the head of the recency list.
func (p *LRU) OnInsert(e *Entry) {
	p.addToHead(e)
}

// OnHit moves the entry to the head of the recency list.
func (p *LRU) OnHit(e *Entry) {
	p.moveToHead(e)
}

// OnRemove unlinks the entry from the recency list.
func (p *LRU) OnRemove(e *Entry) {
	p.removeNode(e)
}

// Victim returns the tail of the recency list.
func (p *LRU) Victim() *Entry {
	return p.tail
}

// Expired always reports false; LRU entries do not age out.
func (p *LRU) Expired(*Entry, time.Time) bool { return false }

func (p *LRU) addToHead(e *Entry) {
	e.prev = nil
	e.next = p.head
	if p.head != nil {
		p.head.prev = e
	}
	p.head = e
	if p.tail == nil {
		p.tail = e
	}
}

func (p *LRU) removeNode(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		p.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		p.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (p *LRU) moveToHead(e *Entry) {
	if e == p.head {
		return
	}
	p.removeNode(e)
	p.addToHead(e)
}
