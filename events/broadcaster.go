package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// defaultStreamBuffer is the per-subscriber channel capacity when none is
// configured.
const defaultStreamBuffer = 64

// Broadcaster fans events out to live subscribers. Publishing never blocks;
// a subscriber that falls behind loses events rather than stalling the
// request path.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan RequestEvent]struct{}
	buffer  int
	dropped atomic.Int64
	closed  bool
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[chan RequestEvent]struct{}),
		buffer: buffer,
		logger: logger.With(zap.String("component", "events.broadcaster")),
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with a cancel function. The channel is closed on cancel or Close.
func (b *Broadcaster) Subscribe() (<-chan RequestEvent, func()) {
	ch := make(chan RequestEvent, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has buffer space.
func (b *Broadcaster) Publish(ev RequestEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded for slow subscribers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close terminates all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
