package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"hajj-management/internal/dto"
	"hajj-management/internal/engine"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// DepartureAllocator 等待队列 FIFO 放行
type DepartureAllocator interface {
	// Evaluate 读取朝觐团当前状态，按 created_at 顺序放行满足门槛的等待阶段
	Evaluate(ctx context.Context, pilgrimGroupID string) (*dto.EvaluationResponse, error)
	// EvaluateAll 对所有存在等待阶段的朝觐团执行 Evaluate，返回放行总数
	EvaluateAll(ctx context.Context) (int, error)
}

type departureAllocator struct {
	repo   *repository.Repository
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewDepartureAllocator 创建 DepartureAllocator 实例
func NewDepartureAllocator(repo *repository.Repository, loc *time.Location, now Clock, logger *zap.Logger) DepartureAllocator {
	return &departureAllocator{repo: repo, loc: loc, now: now, logger: logger}
}

func (a *departureAllocator) Evaluate(ctx context.Context, pilgrimGroupID string) (*dto.EvaluationResponse, error) {
	stages, err := a.repo.Stage.ListByGroup(ctx, pilgrimGroupID)
	if err != nil {
		a.logger.Error("查询朝觐团阶段失败", zap.String("pilgrim_group_id", pilgrimGroupID), zap.Error(err))
		return nil, err
	}

	cumulative, queue := engine.GroupLedger(stages)
	plan := engine.PlanAdmissions(cumulative, queue)

	resp := &dto.EvaluationResponse{
		PilgrimGroupID:     pilgrimGroupID,
		CumulativeDeparted: plan.CumulativeDeparted,
		Reserved:           plan.Reserved,
		Activated:          []string{},
		Admissions:         make([]dto.AdmissionResponse, 0, len(plan.Admissions)),
	}

	for _, adm := range plan.Admissions {
		item := dto.AdmissionResponse{
			StageID:   adm.StageID,
			Available: adm.Available,
			Required:  adm.Required,
			Reason:    adm.Reason,
		}

		switch {
		case adm.Admit:
			if a.activate(ctx, adm) {
				item.Admitted = true
				resp.Activated = append(resp.Activated, adm.StageID)
			}
		case adm.Reason == engine.ReasonMissingRequirement:
			a.logger.Warn("等待阶段缺少出发门槛，队列阻塞", zap.String("stage_id", adm.StageID))
		}

		resp.Admissions = append(resp.Admissions, item)
	}

	return resp, nil
}

// activate 以放行时刻作为新的开始时间；状态已被改动时静默跳过
func (a *departureAllocator) activate(ctx context.Context, adm engine.Admission) bool {
	date, clock := engine.SplitDateClock(a.now(), a.loc)
	err := a.repo.Stage.Activate(ctx, adm.StageID, model.StageStatusWaitingDeparture, date, clock)
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		a.logger.Debug("等待阶段已被并发处理", zap.String("stage_id", adm.StageID))
		return false
	}
	if err != nil {
		a.logger.Error("放行等待阶段失败", zap.String("stage_id", adm.StageID), zap.Error(err))
		return false
	}

	a.logger.Info("等待阶段放行",
		zap.String("stage_id", adm.StageID),
		zap.Int("available", adm.Available),
		zap.Int("required", adm.Required),
	)
	return true
}

func (a *departureAllocator) EvaluateAll(ctx context.Context) (int, error) {
	groupIDs, err := a.repo.Stage.ListGroupIDsByStatus(ctx, model.StageStatusWaitingDeparture)
	if err != nil {
		a.logger.Error("查询待放行朝觐团失败", zap.Error(err))
		return 0, err
	}

	activated := 0
	for _, id := range groupIDs {
		if err := ctx.Err(); err != nil {
			return activated, err
		}
		resp, err := a.Evaluate(ctx, id)
		if err != nil {
			continue
		}
		activated += len(resp.Activated)
	}
	return activated, nil
}
