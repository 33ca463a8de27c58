package api

import (
	"time"

	"github.com/BaSui01/cacheval/scorer"
)

// =============================================================================
// 问答请求类型
// =============================================================================

// AnswerRequest 表示一次答案请求。
// @Description 答案请求结构
type AnswerRequest struct {
	// 语料库中的问题 ID
	QuestionID uint `json:"question_id" example:"42"`
}

// AnswerResponse 表示答案响应。
// @Description 答案响应结构
type AnswerResponse struct {
	// 本次请求的跟踪 ID
	RequestID string `json:"request_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	// 问题 ID
	QuestionID uint `json:"question_id" example:"42"`
	// 问题文本
	Question string `json:"question"`
	// 生成或缓存的答案
	Answer string `json:"answer"`
	// 答案来源: cache 或 llm
	Source string `json:"source" example:"cache"`
	// 质量得分（未命中时为本次打分,命中时为历史得分回显 0）
	Score float64 `json:"score" example:"0.87"`
	// 答案 token 数
	Tokens int `json:"tokens,omitempty" example:"25"`
	// 是否合并进了在途上游调用
	Coalesced bool `json:"coalesced,omitempty"`
	// 服务端耗时（毫秒）
	LatencyMs float64 `json:"latency_ms" example:"12.5"`
	// 响应时间戳
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// 统计与报告类型
// =============================================================================

// StatsResponse 表示缓存与请求统计。
// @Description 运行统计结构
type StatsResponse struct {
	// 缓存命中总数
	Hits uint64 `json:"hits"`
	// 缓存未命中总数
	Misses uint64 `json:"misses"`
	// 淘汰总数
	Evictions uint64 `json:"evictions"`
	// 当前条目数
	Entries int `json:"entries"`
	// 当前字节占用
	Bytes int64 `json:"bytes"`
	// 淘汰策略名
	Policy string `json:"policy" example:"lru"`
	// 命中率 [0,1]
	HitRate float64 `json:"hit_rate" example:"0.73"`
	// 已记录事件数
	Events int `json:"events"`
}

// ReportResponse 包装运行报告。
// @Description 运行报告结构
type ReportResponse struct {
	Report *scorer.Report `json:"report"`
	// 报告是否已落盘
	Persisted bool `json:"persisted"`
	// 落盘路径（为空表示未落盘）
	Path string `json:"path,omitempty"`
}
