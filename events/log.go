package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Log is an append-only in-memory event log. Snapshot is non-destructive,
// so a report can be generated mid-run without disturbing the record.
type Log struct {
	mu     sync.RWMutex
	events []RequestEvent
}

// NewLog creates an empty event log.
func NewLog() *Log {
	return &Log{}
}

// Append records one event.
func (l *Log) Append(ev RequestEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

// Snapshot returns a copy of all events in append order.
func (l *Log) Snapshot() []RequestEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]RequestEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Reset discards all recorded events.
func (l *Log) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// WriteJSONL persists the current snapshot as one JSON object per line.
func (l *Log) WriteJSONL(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create event log file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, ev := range l.Snapshot() {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush event log file: %w", err)
	}
	return nil
}
