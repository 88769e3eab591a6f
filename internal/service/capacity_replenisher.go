package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/internal/dto"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// CapacityReplenisher 中心清空后的一次性补员
//
// 同一 (中心, 阶段) 分配周期内至多补员一次；重复触发、
// 实时通知与轮询同时到达均只会成功一次。
type CapacityReplenisher interface {
	CheckAndRefill(ctx context.Context, centerID string) (*dto.RefillResultResponse, error)
	// SweepEmptyCenters 轮询所有已分配阶段且为空的中心，返回补员成功数
	SweepEmptyCenters(ctx context.Context) (int, error)
}

type capacityReplenisher struct {
	repo   *repository.Repository
	now    Clock
	logger *zap.Logger
}

// NewCapacityReplenisher 创建 CapacityReplenisher 实例
func NewCapacityReplenisher(repo *repository.Repository, now Clock, logger *zap.Logger) CapacityReplenisher {
	return &capacityReplenisher{repo: repo, now: now, logger: logger}
}

func (r *capacityReplenisher) CheckAndRefill(ctx context.Context, centerID string) (*dto.RefillResultResponse, error) {
	out, err := r.repo.Capacity.RefillIfEligible(ctx, centerID, r.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCenterNotFound
		}
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			// 另一次补员已抢先完成
			r.logger.Debug("补员被并发处理", zap.String("center_id", centerID))
			return &dto.RefillResultResponse{CenterID: centerID, SkipReason: repository.RefillSkipAlreadyRefilled}, nil
		}
		r.logger.Error("中心补员失败", zap.String("center_id", centerID), zap.Error(err))
		return nil, err
	}

	if out.Refilled {
		r.logger.Info("中心已补员",
			zap.String("center_id", centerID),
			zap.Int("current_count", out.Center.CurrentCount),
			zap.Int("batch", out.Center.CurrentBatch),
		)
	}
	resp := toRefillResultResponse(centerID, out)
	return &resp, nil
}

func (r *capacityReplenisher) SweepEmptyCenters(ctx context.Context) (int, error) {
	centers, err := r.repo.Center.ListEmptyAssigned(ctx)
	if err != nil {
		r.logger.Error("查询空中心失败", zap.Error(err))
		return 0, err
	}

	refilled := 0
	for i := range centers {
		if err := ctx.Err(); err != nil {
			return refilled, err
		}
		resp, err := r.CheckAndRefill(ctx, centers[i].CenterID)
		if err != nil {
			continue
		}
		if resp.Refilled {
			refilled++
		}
	}
	return refilled, nil
}
