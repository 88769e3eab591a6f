package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hajj-management/internal/dto"
	"hajj-management/internal/service"
	"hajj-management/pkg/response"
)

// 事件流心跳间隔，防止代理断开空闲连接
const streamHeartbeat = 25 * time.Second

// AlertHandler 阶段告警 HTTP 处理器
type AlertHandler struct {
	alertSvc service.AlertService
}

// NewAlertHandler 创建 AlertHandler
func NewAlertHandler(alertSvc service.AlertService) *AlertHandler {
	return &AlertHandler{alertSvc: alertSvc}
}

// ListAlerts 分页查询告警
// GET /api/v1/alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var req dto.AlertListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	alerts, total, err := h.alertSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, alerts, total, req.GetPage(), req.GetPageSize())
}

// ResolveAlert 手动关闭告警
// PUT /api/v1/alerts/:id/resolve
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "告警")
	if !ok {
		return
	}

	alert, err := h.alertSvc.Resolve(c.Request.Context(), id)
	if err != nil {
		h.handleAlertError(c, err)
		return
	}

	response.OK(c, alert)
}

// StreamAlerts 以 text/event-stream 推送新告警
// GET /api/v1/alerts/stream
func (h *AlertHandler) StreamAlerts(c *gin.Context) {
	events, err := h.alertSvc.Subscribe(c.Request.Context())
	if err != nil {
		h.handleAlertError(c, err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	// 长连接不受服务器 WriteTimeout 约束
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case payload, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("stage_alert", payload)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}

// handleAlertError 统一处理告警模块业务错误
func (h *AlertHandler) handleAlertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlertNotFound):
		response.NotFound(c, 23001, "告警不存在或已解决")
	case errors.Is(err, service.ErrAlertStreamUnavailable):
		response.ServiceUnavailable(c, 23002, "实时告警通道不可用")
	default:
		response.InternalError(c)
	}
}
