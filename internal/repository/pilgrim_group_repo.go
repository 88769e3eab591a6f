package repository

import (
	"context"

	"gorm.io/gorm"

	"hajj-management/internal/model"
)

// PilgrimGroupRepository 朝觐团数据访问接口
type PilgrimGroupRepository interface {
	Create(ctx context.Context, group *model.PilgrimGroup) error
	GetByID(ctx context.Context, id string) (*model.PilgrimGroup, error)
}

type pilgrimGroupRepo struct {
	db *gorm.DB
}

func NewPilgrimGroupRepo(db *gorm.DB) PilgrimGroupRepository {
	return &pilgrimGroupRepo{db: db}
}

func (r *pilgrimGroupRepo) Create(ctx context.Context, group *model.PilgrimGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *pilgrimGroupRepo) GetByID(ctx context.Context, id string) (*model.PilgrimGroup, error) {
	var group model.PilgrimGroup
	err := r.db.WithContext(ctx).
		Where("pilgrim_group_id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}
