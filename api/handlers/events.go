package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/types"
)

// =============================================================================
// 📜 事件接口 Handler
// =============================================================================

// EventsHandler 事件日志与实时流处理器
type EventsHandler struct {
	log       *events.Log
	broadcast *events.Broadcaster
	logger    *zap.Logger
}

// NewEventsHandler 创建事件处理器
func NewEventsHandler(log *events.Log, broadcast *events.Broadcaster, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		log:       log,
		broadcast: broadcast,
		logger:    logger,
	}
}

// HandleEvents 处理事件日志快照查询
// @Summary 事件日志
// @Description 返回已记录事件的快照,支持 limit 截取尾部
// @Tags 事件
// @Produce json
// @Param limit query int false "返回条数上限（取最近的）"
// @Success 200 {object} Response "事件列表"
// @Router /api/v1/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.log.Snapshot()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"limit must be a non-negative integer", h.logger)
			return
		}
		if limit < len(snap) {
			snap = snap[len(snap)-limit:]
		}
	}

	WriteSuccess(w, map[string]interface{}{
		"total":  h.log.Len(),
		"events": snap,
	})
}

// HandleStream 处理实时事件流
// @Summary 实时事件流
// @Description 将新事件通过 WebSocket 推送给订阅者,慢消费者会丢事件
// @Tags 事件
// @Success 101 "协议升级"
// @Router /api/v1/events/stream [get]
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream terminated")

	ch, cancel := h.broadcast.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "broadcaster closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("marshal event failed", zap.Error(err))
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.logger.Debug("websocket write failed, dropping subscriber", zap.Error(err))
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		}
	}
}
