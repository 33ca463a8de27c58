package handlers

import (
	"net/http"

	"github.com/BaSui01/cacheval/api"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/proxy"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 统计接口 Handler
// =============================================================================

// StatsHandler 统计接口处理器
type StatsHandler struct {
	router *proxy.Router
	log    *events.Log
	logger *zap.Logger
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(router *proxy.Router, log *events.Log, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		router: router,
		log:    log,
		logger: logger,
	}
}

// HandleStats 处理统计查询
// @Summary 运行统计
// @Description 返回缓存与请求统计快照
// @Tags 统计
// @Produce json
// @Success 200 {object} api.StatsResponse "统计快照"
// @Router /api/v1/stats [get]
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.router.Stats()

	var hitRate float64
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}

	eventCount := 0
	if h.log != nil {
		eventCount = h.log.Len()
	}

	WriteJSON(w, http.StatusOK, api.StatsResponse{
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Evictions: stats.Evictions,
		Entries:   stats.Entries,
		Bytes:     stats.Bytes,
		Policy:    stats.Policy,
		HitRate:   hitRate,
		Events:    eventCount,
	})
}
