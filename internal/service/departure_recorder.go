package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/internal/dto"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// ── 出发登记业务错误 ──

var (
	ErrInvalidDepartureCount = errors.New("出发人数必须大于 0")
	ErrDepartureExceedsCount = errors.New("出发人数超过中心或阶段的剩余人数")
	ErrStageNotDepartable    = errors.New("阶段正在等待放行或已完成，不能登记出发")
)

// 提交后触发的联动步骤共用的超时
const followUpTimeout = 10 * time.Second

// DepartureRecorder 出发登记：计数器移动的唯一入口
type DepartureRecorder interface {
	RecordDeparture(ctx context.Context, centerID string, req *dto.RecordDepartureRequest, operatorID string) (*dto.DepartureResponse, error)
	// UpdateDepartureCounts RPC 形式，只返回成功与否
	UpdateDepartureCounts(ctx context.Context, req *dto.UpdateDepartureCountsRequest, operatorID string) bool
}

type departureRecorder struct {
	repo        *repository.Repository
	allocator   DepartureAllocator
	replenisher CapacityReplenisher
	now         Clock
	logger      *zap.Logger
}

// NewDepartureRecorder 创建 DepartureRecorder 实例
func NewDepartureRecorder(
	repo *repository.Repository,
	allocator DepartureAllocator,
	replenisher CapacityReplenisher,
	now Clock,
	logger *zap.Logger,
) DepartureRecorder {
	return &departureRecorder{
		repo:        repo,
		allocator:   allocator,
		replenisher: replenisher,
		now:         now,
		logger:      logger,
	}
}

func (r *departureRecorder) RecordDeparture(ctx context.Context, centerID string, req *dto.RecordDepartureRequest, operatorID string) (*dto.DepartureResponse, error) {
	if req.DepartureCount <= 0 {
		return nil, ErrInvalidDepartureCount
	}

	if _, err := r.repo.Center.GetByID(ctx, centerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCenterNotFound
		}
		r.logger.Error("查询中心失败", zap.String("center_id", centerID), zap.Error(err))
		return nil, err
	}
	if _, err := r.repo.Stage.GetByID(ctx, req.StageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		r.logger.Error("查询阶段失败", zap.String("stage_id", req.StageID), zap.Error(err))
		return nil, err
	}

	out, err := r.repo.Capacity.RecordDeparture(ctx, repository.DepartureCommand{
		CenterID:   centerID,
		StageID:    req.StageID,
		Count:      req.DepartureCount,
		Notes:      req.Notes,
		RecordedBy: optionalID(operatorID),
		At:         r.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInsufficientCount):
			return nil, ErrDepartureExceedsCount
		case errors.Is(err, pkgerrors.ErrStageNotDepartable):
			return nil, ErrStageNotDepartable
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrCenterNotFound
		}
		r.logger.Error("出发登记事务失败",
			zap.String("center_id", centerID),
			zap.String("stage_id", req.StageID),
			zap.Int("count", req.DepartureCount),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Info("出发已登记",
		zap.String("center_id", centerID),
		zap.String("stage_id", req.StageID),
		zap.Int("count", req.DepartureCount),
		zap.Int("batch", out.Record.BatchNumber),
		zap.Int("center_remaining", out.Center.CurrentCount),
	)

	resp := &dto.DepartureResponse{
		Center: toCenterResponse(&out.Center),
		Stage:  toStageResponse(&out.Stage),
		Record: toDepartureRecordResponse(&out.Record),
	}
	r.followUp(ctx, out, resp)
	return resp, nil
}

// followUp 事务已提交：重新评估朝觐团等待队列，并检查中心补员；失败只记日志
func (r *departureRecorder) followUp(ctx context.Context, out *repository.DepartureOutcome, resp *dto.DepartureResponse) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	if eval, err := r.allocator.Evaluate(ctx, out.Stage.PilgrimGroupID); err != nil {
		r.logger.Warn("出发后重新评估等待队列失败",
			zap.String("pilgrim_group_id", out.Stage.PilgrimGroupID), zap.Error(err))
	} else {
		resp.Activated = eval.Activated
	}

	if out.Center.CurrentCount != 0 {
		return
	}
	refill, err := r.replenisher.CheckAndRefill(ctx, out.Center.CenterID)
	if err != nil {
		r.logger.Warn("出发后补员检查失败", zap.String("center_id", out.Center.CenterID), zap.Error(err))
		return
	}
	resp.Refilled = refill.Refilled
}

func (r *departureRecorder) UpdateDepartureCounts(ctx context.Context, req *dto.UpdateDepartureCountsRequest, operatorID string) bool {
	_, err := r.RecordDeparture(ctx, req.CenterID, &dto.RecordDepartureRequest{
		StageID:        req.StageID,
		DepartureCount: req.DepartureCount,
	}, operatorID)
	if err != nil {
		r.logger.Warn("update_departure_counts 失败",
			zap.String("center_id", req.CenterID),
			zap.String("stage_id", req.StageID),
			zap.Int("count", req.DepartureCount),
			zap.Error(err),
		)
		return false
	}
	return true
}
