package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/internal/dto"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
)

// ── 中心模块业务错误 ──

var (
	ErrCenterNotFound = errors.New("集散中心不存在")
)

// CenterService 集散中心业务接口
type CenterService interface {
	List(ctx context.Context) ([]dto.CenterResponse, error)
	GetByID(ctx context.Context, id string) (*dto.CenterResponse, error)
	// AssignStage 分配阶段；阶段变化时开启新的补员周期。不修改计数器
	AssignStage(ctx context.Context, centerID string, req *dto.AssignStageRequest, callerID string) (*dto.CenterResponse, error)
	SetRefill(ctx context.Context, centerID string, req *dto.RefillToggleRequest, callerID string) (*dto.RefillSettingResponse, error)
	ListDepartures(ctx context.Context, centerID string, req *dto.DepartureHistoryListRequest) ([]dto.DepartureRecordResponse, int64, error)
}

type centerService struct {
	repo        *repository.Repository
	replenisher CapacityReplenisher
	logger      *zap.Logger
}

// NewCenterService 创建 CenterService 实例
func NewCenterService(repo *repository.Repository, replenisher CapacityReplenisher, logger *zap.Logger) CenterService {
	return &centerService{repo: repo, replenisher: replenisher, logger: logger}
}

func (s *centerService) List(ctx context.Context) ([]dto.CenterResponse, error) {
	centers, err := s.repo.Center.List(ctx)
	if err != nil {
		s.logger.Error("查询中心列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.CenterResponse, len(centers))
	for i := range centers {
		result[i] = toCenterResponse(&centers[i])
	}
	return result, nil
}

func (s *centerService) GetByID(ctx context.Context, id string) (*dto.CenterResponse, error) {
	center, err := s.getCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toCenterResponse(center)
	return &resp, nil
}

func (s *centerService) AssignStage(ctx context.Context, centerID string, req *dto.AssignStageRequest, callerID string) (*dto.CenterResponse, error) {
	if _, err := s.getCenter(ctx, centerID); err != nil {
		return nil, err
	}
	stage, err := s.repo.Stage.GetByID(ctx, req.StageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		s.logger.Error("查询阶段失败", zap.Error(err))
		return nil, err
	}
	if stage.IsTerminal() {
		return nil, ErrStageCompleted
	}

	if err := s.repo.Center.AssignStage(ctx, centerID, req.StageID, optionalID(callerID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCenterNotFound
		}
		s.logger.Error("分配阶段失败", zap.String("center_id", centerID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("中心已分配阶段", zap.String("center_id", centerID), zap.String("stage_id", req.StageID))
	return s.GetByID(ctx, centerID)
}

// SetRefill 打开开关时若中心已为空且正是该阶段，立即检查补员
func (s *centerService) SetRefill(ctx context.Context, centerID string, req *dto.RefillToggleRequest, callerID string) (*dto.RefillSettingResponse, error) {
	center, err := s.getCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Stage.GetByID(ctx, req.StageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		s.logger.Error("查询阶段失败", zap.Error(err))
		return nil, err
	}

	setting, err := s.repo.RefillSetting.SetShouldRefill(ctx, centerID, req.StageID, *req.ShouldRefill, optionalID(callerID))
	if err != nil {
		s.logger.Error("保存补员设置失败", zap.String("center_id", centerID), zap.Error(err))
		return nil, err
	}

	if setting.ShouldRefill && isAssigned(center, req.StageID) && center.CurrentCount == 0 {
		if _, err := s.replenisher.CheckAndRefill(ctx, centerID); err != nil {
			s.logger.Warn("开启补员后检查失败", zap.String("center_id", centerID), zap.Error(err))
		} else if refreshed, err := s.repo.RefillSetting.Get(ctx, centerID, req.StageID); err == nil {
			setting = refreshed
		}
	}

	resp := toRefillSettingResponse(setting)
	return &resp, nil
}

func (s *centerService) ListDepartures(ctx context.Context, centerID string, req *dto.DepartureHistoryListRequest) ([]dto.DepartureRecordResponse, int64, error) {
	if _, err := s.getCenter(ctx, centerID); err != nil {
		return nil, 0, err
	}
	records, total, err := s.repo.DepartureHistory.ListByCenter(ctx, centerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询出发流水失败", zap.String("center_id", centerID), zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.DepartureRecordResponse, len(records))
	for i := range records {
		result[i] = toDepartureRecordResponse(&records[i])
	}
	return result, total, nil
}

func (s *centerService) getCenter(ctx context.Context, id string) (*model.Center, error) {
	center, err := s.repo.Center.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCenterNotFound
		}
		s.logger.Error("查询中心失败", zap.String("center_id", id), zap.Error(err))
		return nil, err
	}
	return center, nil
}

func isAssigned(center *model.Center, stageID string) bool {
	return center.StageID != nil && *center.StageID == stageID
}
