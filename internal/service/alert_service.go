package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/internal/dto"
	"hajj-management/internal/repository"
)

// ── 告警模块业务错误 ──

var (
	ErrAlertNotFound          = errors.New("告警不存在或已解决")
	ErrAlertStreamUnavailable = errors.New("实时告警通道不可用")
)

// AlertService 阶段告警查询与订阅
type AlertService interface {
	List(ctx context.Context, req *dto.AlertListRequest) ([]dto.StageAlertResponse, int64, error)
	Resolve(ctx context.Context, id string) (*dto.StageAlertResponse, error)
	Subscribe(ctx context.Context) (<-chan string, error)
}

type alertService struct {
	repo   *repository.Repository
	broker AlertBroker
	now    Clock
	logger *zap.Logger
}

// NewAlertService 创建 AlertService 实例；broker 为 nil 时不支持订阅
func NewAlertService(repo *repository.Repository, broker AlertBroker, now Clock, logger *zap.Logger) AlertService {
	return &alertService{repo: repo, broker: broker, now: now, logger: logger}
}

func (s *alertService) List(ctx context.Context, req *dto.AlertListRequest) ([]dto.StageAlertResponse, int64, error) {
	alerts, total, err := s.repo.StageAlert.List(ctx, repository.StageAlertFilter{
		StageID:         req.StageID,
		IncludeResolved: req.IncludeResolved,
		Offset:          req.GetOffset(),
		Limit:           req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("查询告警列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.StageAlertResponse, len(alerts))
	for i := range alerts {
		result[i] = toStageAlertResponse(&alerts[i])
	}
	return result, total, nil
}

func (s *alertService) Resolve(ctx context.Context, id string) (*dto.StageAlertResponse, error) {
	if err := s.repo.StageAlert.Resolve(ctx, id, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		s.logger.Error("解决告警失败", zap.String("alert_id", id), zap.Error(err))
		return nil, err
	}
	alert, err := s.repo.StageAlert.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("查询告警失败", zap.String("alert_id", id), zap.Error(err))
		return nil, err
	}
	resp := toStageAlertResponse(alert)
	return &resp, nil
}

func (s *alertService) Subscribe(ctx context.Context) (<-chan string, error) {
	if s.broker == nil {
		return nil, ErrAlertStreamUnavailable
	}
	ch, err := s.broker.SubscribeAlerts(ctx)
	if err != nil {
		s.logger.Warn("订阅告警通道失败", zap.Error(err))
		return nil, ErrAlertStreamUnavailable
	}
	return ch, nil
}
