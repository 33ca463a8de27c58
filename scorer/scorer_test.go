package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/types"
)

func newTestScorer(t *testing.T) (*Scorer, *corpus.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store := corpus.NewStore(db, zap.NewNop())
	require.NoError(t, store.AutoMigrate())
	return New(store, zap.NewNop()), store
}

func TestScoreAndSave(t *testing.T) {
	s, store := newTestScorer(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []corpus.QA{
		{Question: "What is Go?", ReferenceAnswer: "Go is a compiled programming language."},
	}))

	score, err := s.ScoreAndSave(ctx, 1, "Go is a compiled programming language.")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	qa, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Go is a compiled programming language.", qa.GeneratedAnswer)
	assert.InDelta(t, 1.0, qa.QualityScore, 1e-9)
	assert.Equal(t, 1, qa.HitCount)
}

func TestScoreAndSaveUnknownID(t *testing.T) {
	s, _ := newTestScorer(t)
	_, err := s.ScoreAndSave(context.Background(), 42, "answer")
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}

func TestRecordHit(t *testing.T) {
	s, store := newTestScorer(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []corpus.QA{
		{Question: "q", ReferenceAnswer: "a"},
	}))
	_, err := s.ScoreAndSave(ctx, 1, "a")
	require.NoError(t, err)

	// Each hit returns the score persisted by the miss that filled the
	// cache and bumps the serve count.
	score, err := s.RecordHit(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = s.RecordHit(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	qa, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, qa.HitCount)
}

func TestRecordHitUnknownID(t *testing.T) {
	s, _ := newTestScorer(t)
	_, err := s.RecordHit(context.Background(), 42)
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}

func TestBuildReport(t *testing.T) {
	s, store := newTestScorer(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []corpus.QA{
		{Question: "q1", ReferenceAnswer: "same answer"},
		{Question: "q2", ReferenceAnswer: "other answer"},
	}))
	_, err := s.ScoreAndSave(ctx, 1, "same answer")
	require.NoError(t, err)

	evs := []events.RequestEvent{
		{QuestionID: 1, Outcome: events.OutcomeMiss, Latency: 100 * time.Millisecond, Tokens: 10, Score: 1.0},
		{QuestionID: 1, Outcome: events.OutcomeHit, Latency: 10 * time.Millisecond, Tokens: 10, Score: 1.0, Coalesced: true},
		{QuestionID: 1, Outcome: events.OutcomeHit, Latency: 20 * time.Millisecond, Tokens: 10, Score: 0.5},
		{QuestionID: 2, Outcome: events.OutcomeError, ErrorCode: types.ErrUpstreamTimeout, Latency: 500 * time.Millisecond},
	}
	stats := cache.Stats{Hits: 2, Misses: 2, Entries: 1, Policy: "lru"}

	report, err := s.BuildReport(ctx, evs, stats)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalRequests)
	assert.Equal(t, 2, report.Hits)
	assert.Equal(t, 1, report.Misses)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Coalesced)
	assert.InDelta(t, 2.0/3.0, report.HitRate, 1e-9)
	assert.InDelta(t, 157.5, report.MeanLatencyMs, 1e-9)
	assert.InDelta(t, 15.0, report.MeanHitLatencyMs, 1e-9)
	assert.InDelta(t, 100.0, report.MeanMissLatencyMs, 1e-9)
	assert.Equal(t, 30, report.TotalTokens)
	assert.InDelta(t, 0.75, report.MeanHitScore, 1e-9)
	assert.InDelta(t, 1.0, report.MeanMissScore, 1e-9)
	assert.InDelta(t, 1.0, report.AverageScore, 1e-9)
	assert.Equal(t, 1, report.ErrorsByCode[types.ErrUpstreamTimeout])
	assert.Equal(t, stats, report.Cache)
}

func TestBuildReportEmpty(t *testing.T) {
	s, _ := newTestScorer(t)

	report, err := s.BuildReport(context.Background(), nil, cache.Stats{})
	require.NoError(t, err)
	assert.Zero(t, report.TotalRequests)
	assert.Zero(t, report.HitRate)
	assert.Zero(t, report.AverageScore)
}
