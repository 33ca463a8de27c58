package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/cacheval/api"
	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/scorer"
	"github.com/BaSui01/cacheval/upstream"
)

type fixture struct {
	router    *proxy.Router
	scorer    *scorer.Scorer
	store     *corpus.Store
	log       *events.Log
	broadcast *events.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store := corpus.NewStore(db, zap.NewNop())
	require.NoError(t, store.AutoMigrate())
	require.NoError(t, store.Insert(context.Background(), []corpus.QA{
		{Question: "What is Go?", ReferenceAnswer: "A compiled programming language."},
		{Question: "Why is the sky blue?", ReferenceAnswer: "Rayleigh scattering."},
	}))

	engine := cache.NewEngine(cache.Config{Capacity: 50}, cache.NewLRU(), zap.NewNop())
	tiered := cache.NewTiered(engine, nil, zap.NewNop())
	sc := scorer.New(store, zap.NewNop())
	gen := upstream.NewSimulated(config.UpstreamConfig{Seed: 42}, upstream.NewTokenCounter(""), zap.NewNop())
	log := events.NewLog()
	broadcast := events.NewBroadcaster(8, zap.NewNop())
	t.Cleanup(broadcast.Close)

	router := proxy.NewRouter(tiered, store, sc, gen, log, broadcast, nil,
		proxy.Options{}, zap.NewNop())

	return &fixture{router: router, scorer: sc, store: store, log: log, broadcast: broadcast}
}

func postAnswer(t *testing.T, h *AnswerHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/answer", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleAnswer(rec, req)
	return rec
}

func TestAnswerHandlerMissThenHit(t *testing.T) {
	fx := newFixture(t)
	h := NewAnswerHandler(fx.router, zap.NewNop())

	rec := postAnswer(t, h, `{"question_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var miss api.AnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &miss))
	assert.Equal(t, "llm", miss.Source)
	assert.EqualValues(t, 1, miss.QuestionID)
	assert.NotEmpty(t, miss.Answer)
	assert.NotEmpty(t, miss.RequestID)

	rec = postAnswer(t, h, `{"question_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var hit api.AnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hit))
	assert.Equal(t, "cache", hit.Source)
	assert.Equal(t, miss.Answer, hit.Answer)
}

func TestAnswerHandlerValidation(t *testing.T) {
	fx := newFixture(t)
	h := NewAnswerHandler(fx.router, zap.NewNop())

	rec := postAnswer(t, h, `{"question_id":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAnswer(t, h, `{"question_id":1,"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAnswer(t, h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/answer", bytes.NewBufferString(`{"question_id":1}`))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.HandleAnswer(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswerHandlerUnknownQuestion(t *testing.T) {
	fx := newFixture(t)
	h := NewAnswerHandler(fx.router, zap.NewNop())

	rec := postAnswer(t, h, `{"question_id":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestStatsHandler(t *testing.T) {
	fx := newFixture(t)
	ah := NewAnswerHandler(fx.router, zap.NewNop())
	postAnswer(t, ah, `{"question_id":1}`)
	postAnswer(t, ah, `{"question_id":1}`)

	h := NewStatsHandler(fx.router, fx.log, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleStats(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats api.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, "lru", stats.Policy)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Equal(t, 2, stats.Events)
}

func TestEventsHandlerSnapshot(t *testing.T) {
	fx := newFixture(t)
	ah := NewAnswerHandler(fx.router, zap.NewNop())
	postAnswer(t, ah, `{"question_id":1}`)
	postAnswer(t, ah, `{"question_id":2}`)
	postAnswer(t, ah, `{"question_id":1}`)

	h := NewEventsHandler(fx.log, fx.broadcast, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Total  int                    `json:"total"`
			Events []events.RequestEvent  `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Len(t, resp.Data.Events, 3)

	// limit keeps the most recent events
	req = httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=1", nil)
	rec = httptest.NewRecorder()
	h.HandleEvents(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, events.OutcomeHit, resp.Data.Events[0].Outcome)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=-1", nil)
	rec = httptest.NewRecorder()
	h.HandleEvents(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandler(t *testing.T) {
	fx := newFixture(t)
	ah := NewAnswerHandler(fx.router, zap.NewNop())
	postAnswer(t, ah, `{"question_id":1}`)
	postAnswer(t, ah, `{"question_id":1}`)

	logFile := filepath.Join(t.TempDir(), "run.jsonl")
	h := NewReportHandler(fx.scorer, fx.router, fx.log, logFile, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", nil)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Equal(t, 2, resp.Report.TotalRequests)
	assert.Equal(t, 1, resp.Report.Hits)
	assert.Equal(t, 1, resp.Report.Misses)
	assert.True(t, resp.Persisted)
	assert.Equal(t, logFile, resp.Path)

	// report is non-destructive
	assert.Equal(t, 2, fx.log.Len())
}

func TestHealthHandlers(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyChecks(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingHealthCheck("corpus", func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["corpus"].Status)

	h.RegisterCheck(NewPingHealthCheck("redis", func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))

	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["redis"].Status)
}

func TestHandleVersion(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	handler := h.HandleVersion("1.2.3", "2025-01-01", "abc123")

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Data["version"])
	assert.Equal(t, "abc123", resp.Data["git_commit"])
}
