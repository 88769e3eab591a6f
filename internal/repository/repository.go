package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
//
// 中心与阶段的计数器只能经由 Capacity 的两个原子过程修改，
// 其余 Repository 不暴露计数器写方法。
type Repository struct {
	PilgrimGroup     PilgrimGroupRepository
	Stage            StageRepository
	Center           CenterRepository
	RefillSetting    RefillSettingRepository
	DepartureHistory DepartureHistoryRepository
	StageAlert       StageAlertRepository
	Capacity         CapacityRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		PilgrimGroup:     NewPilgrimGroupRepo(db),
		Stage:            NewStageRepo(db),
		Center:           NewCenterRepo(db),
		RefillSetting:    NewRefillSettingRepo(db),
		DepartureHistory: NewDepartureHistoryRepo(db),
		StageAlert:       NewStageAlertRepo(db),
		Capacity:         NewCapacityRepo(db),
		db:               db,
	}
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
