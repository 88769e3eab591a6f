package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/internal/dto"
	"hajj-management/internal/engine"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// ── 阶段模块业务错误 ──

var (
	ErrStageNotFound             = errors.New("阶段不存在")
	ErrPilgrimGroupNotFound      = errors.New("朝觐团不存在")
	ErrInvalidStageWindow        = errors.New("阶段结束时间必须晚于开始时间")
	ErrGroupCapacityExceeded     = errors.New("阶段分配人数合计超过朝觐团总人数")
	ErrMissingRequiredDepartures = errors.New("等待出发的阶段必须设置大于 0 的出发门槛")
	ErrStageStatusConflict       = errors.New("阶段当前状态不允许该操作")
	ErrStageWindowEnded          = errors.New("阶段时间窗口已结束，不能开始")
	ErrStageCompleted            = errors.New("阶段已完成")
)

// StageService 阶段业务接口（管理端调用）
type StageService interface {
	Create(ctx context.Context, req *dto.CreateStageRequest, callerID string) (*dto.StageResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateStageRequest, callerID string) (*dto.StageResponse, error)
	GetByID(ctx context.Context, id string) (*dto.StageResponse, error)
	// List 返回阶段列表，并在后台对结果做一次一致性检查
	List(ctx context.Context, req *dto.StageListRequest) ([]dto.StageResponse, error)
	Start(ctx context.Context, id string) (*dto.StageResponse, error)
	Complete(ctx context.Context, id string) (*dto.StageResponse, error)
}

type stageService struct {
	repo      *repository.Repository
	auditor   ConsistencyAuditor
	allocator DepartureAllocator
	loc       *time.Location
	now       Clock
	logger    *zap.Logger

	// auditSlot 同一时刻至多一个由 List 触发的后台检查
	auditSlot chan struct{}
}

// NewStageService 创建 StageService 实例
func NewStageService(
	repo *repository.Repository,
	auditor ConsistencyAuditor,
	allocator DepartureAllocator,
	loc *time.Location,
	now Clock,
	logger *zap.Logger,
) StageService {
	return &stageService{
		repo:      repo,
		auditor:   auditor,
		allocator: allocator,
		loc:       loc,
		now:       now,
		logger:    logger,
		auditSlot: make(chan struct{}, 1),
	}
}

// ────────────────────── Create ──────────────────────

func (s *stageService) Create(ctx context.Context, req *dto.CreateStageRequest, callerID string) (*dto.StageResponse, error) {
	group, err := s.repo.PilgrimGroup.GetByID(ctx, req.PilgrimGroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPilgrimGroupNotFound
		}
		s.logger.Error("查询朝觐团失败", zap.Error(err))
		return nil, err
	}

	stage := &model.Stage{
		PilgrimGroupID:     req.PilgrimGroupID,
		AreaID:             req.AreaID,
		Name:               req.Name,
		Status:             req.Status,
		AssignedPilgrims:   req.AssignedPilgrims,
		CurrentPilgrims:    req.AssignedPilgrims,
		DepartedPilgrims:   0,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		RequiredDepartures: req.RequiredDepartures,
	}
	if stage.Status == "" {
		stage.Status = model.StageStatusInactive
	}
	if stage.StartDate, err = parseDate(req.StartDate); err != nil {
		return nil, err
	}
	if stage.EndDate, err = parseDate(req.EndDate); err != nil {
		return nil, err
	}
	if err := s.validateSchedule(stage); err != nil {
		return nil, err
	}

	assigned, err := s.repo.Stage.SumAssignedByGroup(ctx, group.PilgrimGroupID)
	if err != nil {
		s.logger.Error("汇总朝觐团分配人数失败", zap.Error(err))
		return nil, err
	}
	if assigned+stage.AssignedPilgrims > group.Count {
		return nil, ErrGroupCapacityExceeded
	}

	stage.CreatedBy = optionalID(callerID)
	stage.UpdatedBy = optionalID(callerID)
	if err := s.repo.Stage.Create(ctx, stage); err != nil {
		s.logger.Error("创建阶段失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("阶段已创建",
		zap.String("stage_id", stage.StageID),
		zap.String("pilgrim_group_id", stage.PilgrimGroupID),
		zap.String("status", stage.Status),
	)
	return s.afterScheduleChange(ctx, stage)
}

// ────────────────────── Update ──────────────────────

func (s *stageService) Update(ctx context.Context, id string, req *dto.UpdateStageRequest, callerID string) (*dto.StageResponse, error) {
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.IsTerminal() {
		return nil, ErrStageCompleted
	}
	from := stage.Status

	if req.AreaID != nil {
		stage.AreaID = req.AreaID
	}
	if req.Name != nil {
		stage.Name = *req.Name
	}
	if req.StartDate != nil {
		if stage.StartDate, err = parseDate(*req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		stage.StartTime = *req.StartTime
	}
	if req.EndDate != nil {
		if stage.EndDate, err = parseDate(*req.EndDate); err != nil {
			return nil, err
		}
	}
	if req.EndTime != nil {
		stage.EndTime = *req.EndTime
	}
	if req.Status != nil {
		// 进行中的阶段已有出发记录，不能重新排队
		if from == model.StageStatusActive && *req.Status == model.StageStatusWaitingDeparture {
			return nil, ErrStageStatusConflict
		}
		stage.Status = *req.Status
	}
	if req.RequiredDepartures != nil {
		stage.RequiredDepartures = req.RequiredDepartures
	}
	if err := s.validateSchedule(stage); err != nil {
		return nil, err
	}

	stage.UpdatedBy = optionalID(callerID)
	if err := s.repo.Stage.UpdateSchedule(ctx, stage, from); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStageStatusConflict
		}
		s.logger.Error("更新阶段失败", zap.String("stage_id", id), zap.Error(err))
		return nil, err
	}

	return s.afterScheduleChange(ctx, stage)
}

// validateSchedule 时间窗口与等待门槛校验
func (s *stageService) validateSchedule(stage *model.Stage) error {
	window, err := engine.StageWindow(stage, s.loc)
	if err != nil {
		return ErrInvalidStageWindow
	}
	if !window.End.After(window.Start) {
		return ErrInvalidStageWindow
	}
	if stage.Status == model.StageStatusWaitingDeparture {
		if stage.RequiredDepartures == nil || *stage.RequiredDepartures <= 0 {
			return ErrMissingRequiredDepartures
		}
	}
	return nil
}

// afterScheduleChange 新的等待阶段可能已满足门槛，立即评估一次
func (s *stageService) afterScheduleChange(ctx context.Context, stage *model.Stage) (*dto.StageResponse, error) {
	if stage.Status == model.StageStatusWaitingDeparture {
		if _, err := s.allocator.Evaluate(ctx, stage.PilgrimGroupID); err != nil {
			s.logger.Warn("评估等待队列失败", zap.String("pilgrim_group_id", stage.PilgrimGroupID), zap.Error(err))
		}
	}
	return s.GetByID(ctx, stage.StageID)
}

// ────────────────────── Query ──────────────────────

func (s *stageService) GetByID(ctx context.Context, id string) (*dto.StageResponse, error) {
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toStageResponse(stage)
	return &resp, nil
}

func (s *stageService) List(ctx context.Context, req *dto.StageListRequest) ([]dto.StageResponse, error) {
	stages, err := s.repo.Stage.List(ctx, repository.StageFilter{
		PilgrimGroupID: req.PilgrimGroupID,
		Status:         req.Status,
	})
	if err != nil {
		s.logger.Error("查询阶段列表失败", zap.Error(err))
		return nil, err
	}

	s.auditInBackground(ctx, stages)
	return toStageResponses(stages), nil
}

// auditInBackground 上一次检查未结束时直接跳过，其余交给定时任务
func (s *stageService) auditInBackground(ctx context.Context, stages []model.Stage) {
	select {
	case s.auditSlot <- struct{}{}:
	default:
		s.logger.Debug("一致性检查进行中，跳过本次")
		return
	}

	snapshot := make([]model.Stage, len(stages))
	copy(snapshot, stages)
	auditCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() { <-s.auditSlot }()
		s.auditor.AuditStages(auditCtx, snapshot)
	}()
}

// ────────────────────── Lifecycle ──────────────────────

// Start inactive → active；早于窗口开始时以当前时刻作为新的开始时间
func (s *stageService) Start(ctx context.Context, id string) (*dto.StageResponse, error) {
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.Status != model.StageStatusInactive {
		return nil, ErrStageStatusConflict
	}

	window, err := engine.StageWindow(stage, s.loc)
	if err != nil {
		return nil, ErrInvalidStageWindow
	}
	now := s.now()
	if window.Ended(now) {
		return nil, ErrStageWindowEnded
	}

	startDate, startTime := stage.StartDate, stage.StartTime
	if now.Before(window.Start) {
		startDate, startTime = engine.SplitDateClock(now, s.loc)
	}
	if err := s.repo.Stage.Start(ctx, id, model.StageStatusInactive, startDate, startTime); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStageStatusConflict
		}
		s.logger.Error("开始阶段失败", zap.String("stage_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("阶段已开始", zap.String("stage_id", id))
	return s.GetByID(ctx, id)
}

// Complete active/inactive → completed
func (s *stageService) Complete(ctx context.Context, id string) (*dto.StageResponse, error) {
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.Status != model.StageStatusActive && stage.Status != model.StageStatusInactive {
		return nil, ErrStageStatusConflict
	}

	if err := s.repo.Stage.TransitionStatus(ctx, id, stage.Status, model.StageStatusCompleted); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStageStatusConflict
		}
		s.logger.Error("完成阶段失败", zap.String("stage_id", id), zap.Error(err))
		return nil, err
	}
	s.logger.Info("阶段已完成", zap.String("stage_id", id))

	if _, err := s.allocator.Evaluate(ctx, stage.PilgrimGroupID); err != nil {
		s.logger.Warn("评估等待队列失败", zap.String("pilgrim_group_id", stage.PilgrimGroupID), zap.Error(err))
	}
	return s.GetByID(ctx, id)
}

func (s *stageService) getStage(ctx context.Context, id string) (*model.Stage, error) {
	stage, err := s.repo.Stage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		s.logger.Error("查询阶段失败", zap.String("stage_id", id), zap.Error(err))
		return nil, err
	}
	return stage, nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dto.DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidStageWindow
	}
	return t, nil
}
