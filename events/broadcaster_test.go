package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster(8, zap.NewNop())
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	assert.Equal(t, 2, b.Subscribers())

	ev := sampleEvent(1, OutcomeHit)
	b.Publish(ev)

	got1 := <-ch1
	got2 := <-ch2
	assert.Equal(t, ev.RequestID, got1.RequestID)
	assert.Equal(t, ev.RequestID, got2.RequestID)
}

func TestBroadcasterCancelStopsDelivery(t *testing.T) {
	b := NewBroadcaster(8, zap.NewNop())
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster(1, zap.NewNop())
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(sampleEvent(1, OutcomeHit))
	b.Publish(sampleEvent(2, OutcomeHit)) // buffer full, dropped

	assert.EqualValues(t, 1, b.Dropped())

	got := <-ch
	assert.EqualValues(t, 1, got.QuestionID)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(8, zap.NewNop())

	ch, _ := b.Subscribe()
	b.Close()

	_, open := <-ch
	require.False(t, open)

	// after close, new subscriptions come back closed and publish is a no-op
	ch2, cancel := b.Subscribe()
	cancel()
	_, open = <-ch2
	assert.False(t, open)
	b.Publish(sampleEvent(1, OutcomeHit))
}
