package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"hajj-management/internal/model"
)

// StageAlertFilter 告警列表筛选条件
type StageAlertFilter struct {
	StageID         string
	IncludeResolved bool
	Offset          int
	Limit           int
}

// StageAlertRepository 阶段告警数据访问接口
// 同一 (stage_id, type) 至多一条未解决告警
type StageAlertRepository interface {
	Raise(ctx context.Context, alert *model.StageAlert) (created bool, err error)
	ResolveOpen(ctx context.Context, stageID, alertType string, at time.Time) (int64, error)
	ListOpenByStages(ctx context.Context, stageIDs []string) ([]model.StageAlert, error)
	Resolve(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*model.StageAlert, error)
	List(ctx context.Context, filter StageAlertFilter) ([]model.StageAlert, int64, error)
}

type stageAlertRepo struct {
	db *gorm.DB
}

func NewStageAlertRepo(db *gorm.DB) StageAlertRepository {
	return &stageAlertRepo{db: db}
}

// Raise 已存在未解决的同类告警时只刷新内容，否则新建
func (r *stageAlertRepo) Raise(ctx context.Context, alert *model.StageAlert) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.StageAlert
		err := tx.Where("stage_id = ? AND type = ? AND is_resolved = ?", alert.StageID, alert.Type, false).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"message": alert.Message,
				"details": alert.Details,
			}).Error; err != nil {
				return err
			}
			*alert = existing
			return nil
		}
		created = true
		return tx.Create(alert).Error
	})
	return created, err
}

func (r *stageAlertRepo) ResolveOpen(ctx context.Context, stageID, alertType string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.StageAlert{}).
		Where("stage_id = ? AND type = ? AND is_resolved = ?", stageID, alertType, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *stageAlertRepo) ListOpenByStages(ctx context.Context, stageIDs []string) ([]model.StageAlert, error) {
	var alerts []model.StageAlert
	if len(stageIDs) == 0 {
		return alerts, nil
	}
	err := r.db.WithContext(ctx).
		Where("stage_id IN ? AND is_resolved = ?", stageIDs, false).
		Find(&alerts).Error
	return alerts, err
}

func (r *stageAlertRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.StageAlert{}).
		Where("alert_id = ? AND is_resolved = ?", id, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stageAlertRepo) GetByID(ctx context.Context, id string) (*model.StageAlert, error) {
	var alert model.StageAlert
	err := r.db.WithContext(ctx).
		Where("alert_id = ?", id).
		First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *stageAlertRepo) List(ctx context.Context, filter StageAlertFilter) ([]model.StageAlert, int64, error) {
	var alerts []model.StageAlert
	var total int64

	db := r.db.WithContext(ctx).Model(&model.StageAlert{})
	if filter.StageID != "" {
		db = db.Where("stage_id = ?", filter.StageID)
	}
	if !filter.IncludeResolved {
		db = db.Where("is_resolved = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(filter.Offset).Limit(filter.Limit).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, total, err
}
