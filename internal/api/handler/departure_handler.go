package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hajj-management/internal/dto"
	"hajj-management/internal/service"
	"hajj-management/pkg/response"
)

// DepartureHandler 出发登记 HTTP 处理器
type DepartureHandler struct {
	recorder service.DepartureRecorder
}

// NewDepartureHandler 创建 DepartureHandler
func NewDepartureHandler(recorder service.DepartureRecorder) *DepartureHandler {
	return &DepartureHandler{recorder: recorder}
}

// RecordDeparture 登记一次出发
// POST /api/v1/centers/:id/departures
func (h *DepartureHandler) RecordDeparture(c *gin.Context) {
	centerID, ok := MustGetUUIDParam(c, "id", "中心")
	if !ok {
		return
	}

	var req dto.RecordDepartureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	result, err := h.recorder.RecordDeparture(c.Request.Context(), centerID, &req, OperatorID(c))
	if err != nil {
		h.handleDepartureError(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateDepartureCounts RPC 形式的出发登记，任何失败都只返回 success=false
// POST /api/v1/rpc/update_departure_counts
func (h *DepartureHandler) UpdateDepartureCounts(c *gin.Context) {
	var req dto.UpdateDepartureCountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.OK(c, dto.UpdateDepartureCountsResponse{Success: false})
		return
	}

	ok := h.recorder.UpdateDepartureCounts(c.Request.Context(), &req, OperatorID(c))
	response.OK(c, dto.UpdateDepartureCountsResponse{Success: ok})
}

// handleDepartureError 统一处理出发登记业务错误
func (h *DepartureHandler) handleDepartureError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDepartureCount):
		response.BadRequest(c, 22001, "出发人数必须大于 0")
	case errors.Is(err, service.ErrDepartureExceedsCount):
		response.BadRequest(c, 22002, "出发人数超过中心或阶段的剩余人数")
	case errors.Is(err, service.ErrStageNotDepartable):
		response.Conflict(c, 22003, "阶段正在等待放行或已完成，不能登记出发")
	case errors.Is(err, service.ErrCenterNotFound):
		response.NotFound(c, 22004, "集散中心不存在")
	case errors.Is(err, service.ErrStageNotFound):
		response.NotFound(c, 22005, "阶段不存在")
	default:
		response.InternalError(c)
	}
}
