package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hajj-management/config"
	"hajj-management/internal/repository"
)

// Clock 返回当前时间；测试中替换为固定时钟
type Clock func() time.Time

// AlertBroker 告警实时推送通道（可为 nil，此时只落库不推送）
type AlertBroker interface {
	PublishAlert(ctx context.Context, payload []byte) error
	SubscribeAlerts(ctx context.Context) (<-chan string, error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Stage       StageService
	Center      CenterService
	Alert       AlertService
	Departure   DepartureRecorder
	Scheduler   StageScheduler
	Allocator   DepartureAllocator
	Replenisher CapacityReplenisher
	Auditor     ConsistencyAuditor
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	broker AlertBroker,
	logger *zap.Logger,
) (*Service, error) {
	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, err
	}
	return newService(repo, broker, loc, time.Now, logger), nil
}

func newService(repo *repository.Repository, broker AlertBroker, loc *time.Location, now Clock, logger *zap.Logger) *Service {
	auditor := NewConsistencyAuditor(repo, broker, now, logger)
	allocator := NewDepartureAllocator(repo, loc, now, logger)
	replenisher := NewCapacityReplenisher(repo, now, logger)

	return &Service{
		Stage:       NewStageService(repo, auditor, allocator, loc, now, logger),
		Center:      NewCenterService(repo, replenisher, logger),
		Alert:       NewAlertService(repo, broker, now, logger),
		Departure:   NewDepartureRecorder(repo, allocator, replenisher, now, logger),
		Scheduler:   NewStageScheduler(repo, loc, logger),
		Allocator:   allocator,
		Replenisher: replenisher,
		Auditor:     auditor,
	}
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
