package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hajj-management/internal/model"
)

// CenterRepository 集散中心数据访问接口（计数器写入见 CapacityRepository）
type CenterRepository interface {
	Create(ctx context.Context, center *model.Center) error
	GetByID(ctx context.Context, id string) (*model.Center, error)
	List(ctx context.Context) ([]model.Center, error)
	ListEmptyAssigned(ctx context.Context) ([]model.Center, error)
	AssignStage(ctx context.Context, centerID, stageID string, operatorID *string) error
}

type centerRepo struct {
	db *gorm.DB
}

func NewCenterRepo(db *gorm.DB) CenterRepository {
	return &centerRepo{db: db}
}

func (r *centerRepo) Create(ctx context.Context, center *model.Center) error {
	return r.db.WithContext(ctx).Create(center).Error
}

func (r *centerRepo) GetByID(ctx context.Context, id string) (*model.Center, error) {
	var center model.Center
	err := r.db.WithContext(ctx).
		Where("center_id = ?", id).
		First(&center).Error
	if err != nil {
		return nil, err
	}
	return &center, nil
}

func (r *centerRepo) List(ctx context.Context) ([]model.Center, error) {
	var centers []model.Center
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&centers).Error
	return centers, err
}

// ListEmptyAssigned 已分配阶段且人数为 0 的中心（补员轮询入口）
func (r *centerRepo) ListEmptyAssigned(ctx context.Context) ([]model.Center, error) {
	var centers []model.Center
	err := r.db.WithContext(ctx).
		Where("current_count = 0 AND stage_id IS NOT NULL").
		Find(&centers).Error
	return centers, err
}

// AssignStage 为中心分配阶段；仅当阶段发生变化时开启新的补员周期（清除该组合的 is_refilled）
// 重复分配同一阶段不影响补员保护。不修改任何计数器
func (r *centerRepo) AssignStage(ctx context.Context, centerID, stageID string, operatorID *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var center model.Center
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("center_id = ?", centerID).
			First(&center).Error; err != nil {
			return err
		}
		if center.StageID != nil && *center.StageID == stageID {
			return nil
		}

		if err := tx.Model(&model.Center{}).
			Where("center_id = ?", centerID).
			Updates(map[string]interface{}{
				"stage_id":   stageID,
				"updated_by": operatorID,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&model.CenterStageRefill{}).
			Where("center_id = ? AND stage_id = ?", centerID, stageID).
			Updates(map[string]interface{}{
				"is_refilled": false,
				"refill_date": nil,
			}).Error
	})
}
