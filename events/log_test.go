package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/cacheval/types"
)

func sampleEvent(id uint, outcome Outcome) RequestEvent {
	return RequestEvent{
		RequestID:  uuid.NewString(),
		QuestionID: id,
		Outcome:    outcome,
		Latency:    120 * time.Millisecond,
		Timestamp:  time.Now(),
	}
}

func TestLogAppendAndSnapshot(t *testing.T) {
	log := NewLog()
	log.Append(sampleEvent(1, OutcomeMiss))
	log.Append(sampleEvent(1, OutcomeHit))
	log.Append(sampleEvent(2, OutcomeError))

	snap := log.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, OutcomeMiss, snap[0].Outcome)
	assert.Equal(t, OutcomeHit, snap[1].Outcome)
	assert.Equal(t, OutcomeError, snap[2].Outcome)

	// snapshot is a copy, not a view
	snap[0].Outcome = OutcomeError
	assert.Equal(t, OutcomeMiss, log.Snapshot()[0].Outcome)
	assert.Equal(t, 3, log.Len())
}

func TestLogSnapshotNonDestructive(t *testing.T) {
	log := NewLog()
	log.Append(sampleEvent(1, OutcomeHit))

	first := log.Snapshot()
	second := log.Snapshot()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, log.Len())
}

func TestLogReset(t *testing.T) {
	log := NewLog()
	log.Append(sampleEvent(1, OutcomeHit))
	log.Reset()
	assert.Zero(t, log.Len())
	assert.Empty(t, log.Snapshot())
}

func TestLogConcurrentAppend(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Append(sampleEvent(id, OutcomeHit))
			}
		}(uint(i))
	}
	wg.Wait()
	assert.Equal(t, 1000, log.Len())
}

func TestLogWriteJSONL(t *testing.T) {
	log := NewLog()
	ev := sampleEvent(7, OutcomeError)
	ev.ErrorCode = types.ErrUpstreamTimeout
	log.Append(sampleEvent(1, OutcomeMiss))
	log.Append(ev)

	path := filepath.Join(t.TempDir(), "run.jsonl")
	require.NoError(t, log.WriteJSONL(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []RequestEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded RequestEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		lines = append(lines, decoded)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, OutcomeMiss, lines[0].Outcome)
	assert.Equal(t, types.ErrUpstreamTimeout, lines[1].ErrorCode)
	assert.EqualValues(t, 7, lines[1].QuestionID)
}
