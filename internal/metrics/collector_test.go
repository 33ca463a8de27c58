package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("cacheval", reg, zap.NewNop()), reg
}

func TestRecordRequestOutcomes(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordRequest("HIT", 5*time.Millisecond)
	c.RecordRequest("HIT", 10*time.Millisecond)
	c.RecordRequest("MISS", time.Second)
	c.RecordRequest("ERROR", 100*time.Millisecond)

	expected := `
		# HELP cacheval_requests_total Total number of answer requests by outcome
		# TYPE cacheval_requests_total counter
		cacheval_requests_total{outcome="ERROR"} 1
		cacheval_requests_total{outcome="HIT"} 2
		cacheval_requests_total{outcome="MISS"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"cacheval_requests_total"))
}

func TestRecordCacheMetrics(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordCacheHit("local")
	c.RecordCacheHit("local")
	c.RecordCacheMiss("local")
	c.RecordCacheHit("remote")
	c.AddCacheEvictions("lru", 3)
	c.SetCacheEntries("local", 42)

	expected := `
		# HELP cacheval_cache_hits_total Total number of cache hits
		# TYPE cacheval_cache_hits_total counter
		cacheval_cache_hits_total{tier="local"} 2
		cacheval_cache_hits_total{tier="remote"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"cacheval_cache_hits_total"))

	assert.InDelta(t, 42, testutil.ToFloat64(c.cacheEntries.WithLabelValues("local")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(c.cacheEvictions.WithLabelValues("lru")), 1e-9)
}

func TestRecordUpstreamCall(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordUpstreamCall("simulated", "ok", time.Second, 25)
	c.RecordUpstreamCall("simulated", "error", 2*time.Second, 0)
	c.RecordCoalesced()

	assert.InDelta(t, 1, testutil.ToFloat64(c.upstreamCalls.WithLabelValues("simulated", "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.upstreamCalls.WithLabelValues("simulated", "error")), 1e-9)
	assert.InDelta(t, 25, testutil.ToFloat64(c.upstreamTokens), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.coalescedRequests), 1e-9)
}

func TestRecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/v1/answer", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/v1/answer", 504, 2*time.Second)

	assert.InDelta(t, 1,
		testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/answer", "2xx")), 1e-9)
	assert.InDelta(t, 1,
		testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/answer", "5xx")), 1e-9)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(429))
	assert.Equal(t, "5xx", statusCode(502))
	assert.Equal(t, "unknown", statusCode(42))
}

func TestRecordDBConnections(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDBConnections("corpus", 5, 3)
	assert.InDelta(t, 5, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("corpus")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("corpus")), 1e-9)
}
