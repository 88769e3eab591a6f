package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hajj-management/internal/dto"
	"hajj-management/internal/service"
	"hajj-management/pkg/response"
)

// StageHandler 阶段模块 HTTP 处理器
type StageHandler struct {
	stageSvc  service.StageService
	allocator service.DepartureAllocator
}

// NewStageHandler 创建 StageHandler
func NewStageHandler(stageSvc service.StageService, allocator service.DepartureAllocator) *StageHandler {
	return &StageHandler{stageSvc: stageSvc, allocator: allocator}
}

// ListStages 获取阶段列表
// GET /api/v1/stages
func (h *StageHandler) ListStages(c *gin.Context) {
	var req dto.StageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	stages, err := h.stageSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": stages})
}

// GetStage 获取阶段详情
// GET /api/v1/stages/:id
func (h *StageHandler) GetStage(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "阶段")
	if !ok {
		return
	}

	stage, err := h.stageSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.OK(c, stage)
}

// CreateStage 创建阶段
// POST /api/v1/stages
func (h *StageHandler) CreateStage(c *gin.Context) {
	var req dto.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stage, err := h.stageSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.Created(c, stage)
}

// UpdateStage 编辑阶段
// PUT /api/v1/stages/:id
func (h *StageHandler) UpdateStage(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "阶段")
	if !ok {
		return
	}

	var req dto.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, 10001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stage, err := h.stageSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.OK(c, stage)
}

// StartStage 手动开始阶段
// POST /api/v1/stages/:id/start
func (h *StageHandler) StartStage(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "阶段")
	if !ok {
		return
	}

	stage, err := h.stageSvc.Start(c.Request.Context(), id)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.OK(c, stage)
}

// CompleteStage 结束阶段
// POST /api/v1/stages/:id/complete
func (h *StageHandler) CompleteStage(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "阶段")
	if !ok {
		return
	}

	stage, err := h.stageSvc.Complete(c.Request.Context(), id)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.OK(c, stage)
}

// EvaluateGroup 立即评估朝觐团的等待队列
// POST /api/v1/pilgrim-groups/:id/evaluate
func (h *StageHandler) EvaluateGroup(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id", "朝觐团")
	if !ok {
		return
	}

	result, err := h.allocator.Evaluate(c.Request.Context(), id)
	if err != nil {
		h.handleStageError(c, err)
		return
	}

	response.OK(c, result)
}

// handleStageError 统一处理阶段模块业务错误
func (h *StageHandler) handleStageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStageNotFound):
		response.NotFound(c, 20001, "阶段不存在")
	case errors.Is(err, service.ErrPilgrimGroupNotFound):
		response.NotFound(c, 20002, "朝觐团不存在")
	case errors.Is(err, service.ErrInvalidStageWindow):
		response.BadRequest(c, 20003, "阶段结束时间必须晚于开始时间")
	case errors.Is(err, service.ErrGroupCapacityExceeded):
		response.BadRequest(c, 20004, "阶段分配人数合计超过朝觐团总人数")
	case errors.Is(err, service.ErrMissingRequiredDepartures):
		response.BadRequest(c, 20005, "等待出发的阶段必须设置出发门槛")
	case errors.Is(err, service.ErrStageStatusConflict):
		response.Conflict(c, 20006, "阶段当前状态不允许该操作")
	case errors.Is(err, service.ErrStageWindowEnded):
		response.Conflict(c, 20007, "阶段时间窗口已结束")
	case errors.Is(err, service.ErrStageCompleted):
		response.Conflict(c, 20008, "阶段已完成")
	default:
		response.InternalError(c)
	}
}
