package cacheval

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newFacadeStore(t *testing.T) *corpus.Store {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db, err := corpus.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, logger)
	require.NoError(t, err)
	store := corpus.NewStore(db, logger)
	require.NoError(t, store.AutoMigrate())
	require.NoError(t, store.Insert(context.Background(), []corpus.QA{
		{ID: 1, Question: "What is the boiling point of water?", ReferenceAnswer: "100 degrees Celsius at sea level."},
		{ID: 2, Question: "Who wrote Hamlet?", ReferenceAnswer: "William Shakespeare wrote Hamlet."},
	}))
	return store
}

func fastGenerator(t *testing.T) upstream.Generator {
	t.Helper()
	cfg := config.DefaultUpstreamConfig()
	cfg.Latency = 0
	gen, err := upstream.New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return gen
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus store")
}

func TestNew_ServesCacheFirst(t *testing.T) {
	log := events.NewLog()
	r, err := New(
		WithStore(newFacadeStore(t)),
		WithGenerator(fastGenerator(t)),
		WithEventLog(log),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := r.Handle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeMiss, first.Outcome)
	assert.NotEmpty(t, first.Answer)

	second, err := r.Handle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeHit, second.Outcome)
	assert.Equal(t, first.Answer, second.Answer)

	assert.Equal(t, 2, log.Len())
}

func TestNew_RejectsUnknownPolicy(t *testing.T) {
	_, err := New(WithStore(newFacadeStore(t)), WithPolicy("fifo"))
	require.Error(t, err)
}

func TestNew_OptionOverrides(t *testing.T) {
	r, err := New(
		WithStore(newFacadeStore(t)),
		WithGenerator(fastGenerator(t)),
		WithPolicy("lfu"),
		WithCapacity(2),
		WithUpstreamTimeout(5*time.Second),
		WithMaxConcurrent(2),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []uint{1, 2} {
		_, err := r.Handle(ctx, id)
		require.NoError(t, err)
	}

	stats := r.Stats()
	assert.Equal(t, "lfu", stats.Policy)
	assert.Equal(t, 2, stats.Entries)
}
