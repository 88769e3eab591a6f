package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"hajj-management/internal/engine"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// SweepResult 一次窗口巡检的统计
type SweepResult struct {
	Checked     int      `json:"checked"`
	Deactivated []string `json:"deactivated"`
	Failed      int      `json:"failed"`
}

// StageScheduler 时间窗口巡检：窗口外的 active 阶段回到 inactive
//
// 只做 active → inactive，从不自动激活；激活只来自显式开始或等待队列放行。
type StageScheduler interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

type stageScheduler struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewStageScheduler 创建 StageScheduler 实例
func NewStageScheduler(repo *repository.Repository, loc *time.Location, logger *zap.Logger) StageScheduler {
	return &stageScheduler{repo: repo, loc: loc, logger: logger}
}

func (s *stageScheduler) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	stages, err := s.repo.Stage.ListByStatus(ctx, model.StageStatusActive)
	if err != nil {
		s.logger.Error("查询进行中阶段失败", zap.Error(err))
		return nil, err
	}

	result := &SweepResult{Deactivated: []string{}}
	for i := range stages {
		stage := &stages[i]
		result.Checked++

		window, err := engine.StageWindow(stage, s.loc)
		if err != nil {
			// 单个阶段数据异常不影响其余阶段
			s.logger.Warn("阶段时间窗口无法解析，跳过", zap.String("stage_id", stage.StageID), zap.Error(err))
			result.Failed++
			continue
		}
		if window.Contains(now) {
			continue
		}

		err = s.repo.Stage.TransitionStatus(ctx, stage.StageID, model.StageStatusActive, model.StageStatusInactive)
		switch {
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			s.logger.Debug("阶段状态已被并发修改，跳过", zap.String("stage_id", stage.StageID))
		case err != nil:
			s.logger.Error("阶段停用失败", zap.String("stage_id", stage.StageID), zap.Error(err))
			result.Failed++
		default:
			s.logger.Info("阶段已超出时间窗口，停用",
				zap.String("stage_id", stage.StageID),
				zap.Time("window_start", window.Start),
				zap.Time("window_end", window.End),
			)
			result.Deactivated = append(result.Deactivated, stage.StageID)
		}
	}
	return result, nil
}
