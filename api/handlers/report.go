package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/api"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/scorer"
	"github.com/BaSui01/cacheval/types"
)

// =============================================================================
// 📈 报告接口 Handler
// =============================================================================

// ReportHandler 运行报告处理器
type ReportHandler struct {
	scorer  *scorer.Scorer
	router  *proxy.Router
	log     *events.Log
	logFile string
	logger  *zap.Logger
}

// NewReportHandler 创建报告处理器。logFile 非空时生成报告的同时
// 把事件日志落盘。
func NewReportHandler(s *scorer.Scorer, router *proxy.Router, log *events.Log, logFile string, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		scorer:  s,
		router:  router,
		log:     log,
		logFile: logFile,
		logger:  logger,
	}
}

// HandleReport 生成运行报告
// @Summary 运行报告
// @Description 聚合事件日志生成报告,快照不清空事件
// @Tags 报告
// @Produce json
// @Success 200 {object} api.ReportResponse "运行报告"
// @Router /api/v1/report [post]
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.scorer.BuildReport(r.Context(), h.log.Snapshot(), h.router.Stats())
	if err != nil {
		h.logger.Error("report generation failed", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError,
			"report generation failed", h.logger)
		return
	}

	resp := api.ReportResponse{Report: report}
	if h.logFile != "" {
		if err := h.log.WriteJSONL(h.logFile); err != nil {
			h.logger.Warn("event log persistence failed",
				zap.String("path", h.logFile), zap.Error(err))
		} else {
			resp.Persisted = true
			resp.Path = h.logFile
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
