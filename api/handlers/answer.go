package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/cacheval/api"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 答案接口 Handler
// =============================================================================

// AnswerHandler 答案接口处理器
type AnswerHandler struct {
	router *proxy.Router
	logger *zap.Logger
}

// NewAnswerHandler 创建答案处理器
func NewAnswerHandler(router *proxy.Router, logger *zap.Logger) *AnswerHandler {
	return &AnswerHandler{
		router: router,
		logger: logger,
	}
}

// HandleAnswer 处理答案请求
// @Summary 答案请求
// @Description 缓存优先地回答语料库中的一个问题
// @Tags 问答
// @Accept json
// @Produce json
// @Param request body api.AnswerRequest true "答案请求"
// @Success 200 {object} api.AnswerResponse "答案响应"
// @Failure 400 {object} Response "无效请求"
// @Failure 404 {object} Response "问题不存在"
// @Failure 504 {object} Response "上游超时"
// @Router /api/v1/answer [post]
func (h *AnswerHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.AnswerRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if req.QuestionID == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"question_id is required", h.logger)
		return
	}

	result, err := h.router.Handle(r.Context(), req.QuestionID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.AnswerResponse{
		RequestID:  result.RequestID,
		QuestionID: result.QuestionID,
		Question:   result.Question,
		Answer:     result.Answer,
		Source:     result.Source,
		Score:      result.Score,
		Tokens:     result.Tokens,
		Coalesced:  result.Coalesced,
		LatencyMs:  float64(result.Latency) / float64(time.Millisecond),
		Timestamp:  time.Now(),
	})
}
