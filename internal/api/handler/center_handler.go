package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hajj-management/internal/dto"
	"hajj-management/internal/service"
	"hajj-management/pkg/response"
)

// CenterHandler 集散中心模块 HTTP 处理器
type CenterHandler struct {
	centerSvc service.CenterService
}

// NewCenterHandler 创建 CenterHandler
func NewCenterHandler(centerSvc service.CenterService) *CenterHandler {
	return &CenterHandler{centerSvc: centerSvc}
}

// ListCenters 获取中心列表
// GET /api/v1/centers
func (h *CenterHandler) ListCenters(c *gin.Context) {
	centers, err := h.centerSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": centers})
}

// GetCenter 获取中心详情
// GET /api/v1/centers/:id
func (h *CenterHandler) GetCenter(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "中心")
	if !ok {
		return
	}

	center, err := h.centerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleCenterError(c, err)
		return
	}

	response.OK(c, center)
}

// AssignStage 为中心分配阶段
// PUT /api/v1/centers/:id/stage
func (h *CenterHandler) AssignStage(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "中心")
	if !ok {
		return
	}

	var req dto.AssignStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	center, err := h.centerSvc.AssignStage(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleCenterError(c, err)
		return
	}

	response.OK(c, center)
}

// SetRefill 设置自动补员开关
// PUT /api/v1/centers/:id/refill
func (h *CenterHandler) SetRefill(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "中心")
	if !ok {
		return
	}

	var req dto.RefillToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	setting, err := h.centerSvc.SetRefill(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleCenterError(c, err)
		return
	}

	response.OK(c, setting)
}

// ListDepartures 分页查询中心出发流水
// GET /api/v1/centers/:id/departures
func (h *CenterHandler) ListDepartures(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "中心")
	if !ok {
		return
	}

	var req dto.DepartureHistoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	records, total, err := h.centerSvc.ListDepartures(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCenterError(c, err)
		return
	}

	response.OKPage(c, records, total, req.GetPage(), req.GetPageSize())
}

// handleCenterError 统一处理中心模块业务错误
func (h *CenterHandler) handleCenterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCenterNotFound):
		response.NotFound(c, 21001, "集散中心不存在")
	case errors.Is(err, service.ErrStageNotFound):
		response.NotFound(c, 21002, "阶段不存在")
	case errors.Is(err, service.ErrStageCompleted):
		response.Conflict(c, 21003, "阶段已完成，不能分配")
	default:
		response.InternalError(c)
	}
}
