// ===== 🎯 事件日志：每请求观测记录 =====

package events

import (
	"time"

	"github.com/BaSui01/cacheval/types"
)

// Outcome classifies how a request was served.
type Outcome string

const (
	// OutcomeHit means the answer came from the cache.
	OutcomeHit Outcome = "HIT"
	// OutcomeMiss means the answer came from the upstream generator.
	OutcomeMiss Outcome = "MISS"
	// OutcomeError means the request failed before an answer was produced.
	OutcomeError Outcome = "ERROR"
)

// RequestEvent is one per-request observation. Every request that reaches
// the router produces exactly one event, errors included.
type RequestEvent struct {
	RequestID  string          `json:"request_id"`
	QuestionID uint            `json:"question_id"`
	Outcome    Outcome         `json:"outcome"`
	ErrorCode  types.ErrorCode `json:"error_code,omitempty"`
	Answer     string          `json:"answer,omitempty"`
	Tokens     int             `json:"tokens,omitempty"`
	Score      float64         `json:"score,omitempty"`
	Coalesced  bool            `json:"coalesced,omitempty"`
	Latency    time.Duration   `json:"latency_ns"`
	Timestamp  time.Time       `json:"timestamp"`
}
