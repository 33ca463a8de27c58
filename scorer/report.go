package scorer

import (
	"context"
	"time"

	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/types"
)

// Report summarizes one evaluation run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	TotalRequests int     `json:"total_requests"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Errors        int     `json:"errors"`
	Coalesced     int     `json:"coalesced"`
	HitRate       float64 `json:"hit_rate"`

	MeanLatencyMs     float64 `json:"mean_latency_ms"`
	MeanHitLatencyMs  float64 `json:"mean_hit_latency_ms"`
	MeanMissLatencyMs float64 `json:"mean_miss_latency_ms"`

	TotalTokens int `json:"total_tokens"`

	// MeanHitScore and MeanMissScore average the similarity scores
	// attached to events by outcome; AverageScore is the corpus-wide
	// persisted average.
	MeanHitScore  float64 `json:"mean_hit_score"`
	MeanMissScore float64 `json:"mean_miss_score"`
	AverageScore  float64 `json:"average_score"`

	ErrorsByCode map[types.ErrorCode]int `json:"errors_by_code,omitempty"`

	Cache cache.Stats `json:"cache"`
}

// BuildReport aggregates the event log into a run report. cacheStats is the
// engine snapshot at report time; the average quality score comes from the
// corpus write-backs.
func (s *Scorer) BuildReport(ctx context.Context, evs []events.RequestEvent, cacheStats cache.Stats) (*Report, error) {
	r := &Report{
		GeneratedAt:  time.Now(),
		ErrorsByCode: make(map[types.ErrorCode]int),
		Cache:        cacheStats,
	}

	var totalLatency, hitLatency, missLatency time.Duration
	var hitScore, missScore float64
	for _, ev := range evs {
		r.TotalRequests++
		totalLatency += ev.Latency
		r.TotalTokens += ev.Tokens
		if ev.Coalesced {
			r.Coalesced++
		}

		switch ev.Outcome {
		case events.OutcomeHit:
			r.Hits++
			hitLatency += ev.Latency
			hitScore += ev.Score
		case events.OutcomeMiss:
			r.Misses++
			missLatency += ev.Latency
			missScore += ev.Score
		case events.OutcomeError:
			r.Errors++
			if ev.ErrorCode != "" {
				r.ErrorsByCode[ev.ErrorCode]++
			}
		}
	}

	served := r.Hits + r.Misses
	if served > 0 {
		r.HitRate = float64(r.Hits) / float64(served)
	}
	if r.TotalRequests > 0 {
		r.MeanLatencyMs = msPer(totalLatency, r.TotalRequests)
	}
	if r.Hits > 0 {
		r.MeanHitLatencyMs = msPer(hitLatency, r.Hits)
		r.MeanHitScore = hitScore / float64(r.Hits)
	}
	if r.Misses > 0 {
		r.MeanMissLatencyMs = msPer(missLatency, r.Misses)
		r.MeanMissScore = missScore / float64(r.Misses)
	}

	avg, err := s.store.AverageScore(ctx)
	if err != nil {
		return nil, err
	}
	r.AverageScore = avg
	return r, nil
}

func msPer(total time.Duration, n int) float64 {
	return float64(total) / float64(time.Millisecond) / float64(n)
}
