package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"hajj-management/internal/model"
	pkgerrors "hajj-management/pkg/errors"
)

// StageFilter 阶段列表筛选条件
type StageFilter struct {
	PilgrimGroupID string
	Status         string
}

// StageRepository 阶段数据访问接口
//
// 状态写入均为 compare-and-set：WHERE status = from，
// 0 行受影响时返回 pkgerrors.ErrOptimisticLock。
type StageRepository interface {
	Create(ctx context.Context, stage *model.Stage) error
	GetByID(ctx context.Context, id string) (*model.Stage, error)
	List(ctx context.Context, filter StageFilter) ([]model.Stage, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Stage, error)
	ListByStatus(ctx context.Context, status string) ([]model.Stage, error)
	ListGroupIDsByStatus(ctx context.Context, status string) ([]string, error)
	SumAssignedByGroup(ctx context.Context, groupID string) (int, error)
	UpdateSchedule(ctx context.Context, stage *model.Stage, from string) error
	TransitionStatus(ctx context.Context, id, from, to string) error
	Start(ctx context.Context, id, from string, startDate time.Time, startTime string) error
	Activate(ctx context.Context, id, from string, startDate time.Time, startTime string) error
}

type stageRepo struct {
	db *gorm.DB
}

func NewStageRepo(db *gorm.DB) StageRepository {
	return &stageRepo{db: db}
}

func (r *stageRepo) Create(ctx context.Context, stage *model.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *stageRepo) GetByID(ctx context.Context, id string) (*model.Stage, error) {
	var stage model.Stage
	err := r.db.WithContext(ctx).
		Where("stage_id = ?", id).
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *stageRepo) List(ctx context.Context, filter StageFilter) ([]model.Stage, error) {
	var stages []model.Stage
	db := r.db.WithContext(ctx).Model(&model.Stage{})
	if filter.PilgrimGroupID != "" {
		db = db.Where("pilgrim_group_id = ?", filter.PilgrimGroupID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("created_at ASC, stage_id ASC").Find(&stages).Error
	return stages, err
}

func (r *stageRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Stage, error) {
	var stages []model.Stage
	err := r.db.WithContext(ctx).
		Where("pilgrim_group_id = ?", groupID).
		Order("created_at ASC, stage_id ASC").
		Find(&stages).Error
	return stages, err
}

func (r *stageRepo) ListByStatus(ctx context.Context, status string) ([]model.Stage, error) {
	var stages []model.Stage
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC, stage_id ASC").
		Find(&stages).Error
	return stages, err
}

func (r *stageRepo) ListGroupIDsByStatus(ctx context.Context, status string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("status = ?", status).
		Distinct().
		Pluck("pilgrim_group_id", &ids).Error
	return ids, err
}

func (r *stageRepo) SumAssignedByGroup(ctx context.Context, groupID string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("pilgrim_group_id = ?", groupID).
		Select("COALESCE(SUM(assigned_pilgrims), 0)").
		Scan(&total).Error
	return total, err
}

// UpdateSchedule 管理端编辑：时间窗口、区域、门槛、状态（不含计数器）
// 以编辑前的状态 from 作为写入条件
func (r *stageRepo) UpdateSchedule(ctx context.Context, stage *model.Stage, from string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("stage_id = ? AND status = ?", stage.StageID, from).
		Updates(map[string]interface{}{
			"name":                stage.Name,
			"area_id":             stage.AreaID,
			"status":              stage.Status,
			"start_date":          stage.StartDate,
			"start_time":          stage.StartTime,
			"end_date":            stage.EndDate,
			"end_time":            stage.EndTime,
			"required_departures": stage.RequiredDepartures,
			"updated_by":          stage.UpdatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *stageRepo) TransitionStatus(ctx context.Context, id, from, to string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("stage_id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// Start 显式开始：只改状态与开始时间，计数器保持不变
func (r *stageRepo) Start(ctx context.Context, id, from string, startDate time.Time, startTime string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("stage_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     model.StageStatusActive,
			"start_date": startDate,
			"start_time": startTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// Activate 放行：status=active，departed_pilgrims 归零，开始时间改为放行时刻
func (r *stageRepo) Activate(ctx context.Context, id, from string, startDate time.Time, startTime string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Stage{}).
		Where("stage_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":            model.StageStatusActive,
			"departed_pilgrims": 0,
			"start_date":        startDate,
			"start_time":        startTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}
