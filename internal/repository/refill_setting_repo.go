package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hajj-management/internal/model"
)

// RefillSettingRepository 补员开关数据访问接口
// is_refilled 只由 CapacityRepository.RefillIfEligible 置位、由 CenterRepository.AssignStage 清除
type RefillSettingRepository interface {
	Get(ctx context.Context, centerID, stageID string) (*model.CenterStageRefill, error)
	SetShouldRefill(ctx context.Context, centerID, stageID string, shouldRefill bool, operatorID *string) (*model.CenterStageRefill, error)
}

type refillSettingRepo struct {
	db *gorm.DB
}

func NewRefillSettingRepo(db *gorm.DB) RefillSettingRepository {
	return &refillSettingRepo{db: db}
}

func (r *refillSettingRepo) Get(ctx context.Context, centerID, stageID string) (*model.CenterStageRefill, error) {
	var setting model.CenterStageRefill
	err := r.db.WithContext(ctx).
		Where("center_id = ? AND stage_id = ?", centerID, stageID).
		First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// SetShouldRefill upsert (center_id, stage_id) 的 should_refill
func (r *refillSettingRepo) SetShouldRefill(ctx context.Context, centerID, stageID string, shouldRefill bool, operatorID *string) (*model.CenterStageRefill, error) {
	setting := &model.CenterStageRefill{
		CenterID:     centerID,
		StageID:      stageID,
		ShouldRefill: shouldRefill,
	}
	setting.CreatedBy = operatorID
	setting.UpdatedBy = operatorID

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "center_id"}, {Name: "stage_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"should_refill", "updated_by", "updated_at"}),
		}).
		Create(setting).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, centerID, stageID)
}
