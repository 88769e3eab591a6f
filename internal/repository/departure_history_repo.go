package repository

import (
	"context"

	"gorm.io/gorm"

	"hajj-management/internal/model"
)

// DepartureHistoryRepository 出发流水数据访问接口（只读；写入仅在 RecordDeparture 事务内）
type DepartureHistoryRepository interface {
	ListByCenter(ctx context.Context, centerID string, offset, limit int) ([]model.DepartureHistory, int64, error)
	SumByBatch(ctx context.Context, centerID string, batch int) (int, error)
}

type departureHistoryRepo struct {
	db *gorm.DB
}

func NewDepartureHistoryRepo(db *gorm.DB) DepartureHistoryRepository {
	return &departureHistoryRepo{db: db}
}

func (r *departureHistoryRepo) ListByCenter(ctx context.Context, centerID string, offset, limit int) ([]model.DepartureHistory, int64, error) {
	var records []model.DepartureHistory
	var total int64

	db := r.db.WithContext(ctx).Model(&model.DepartureHistory{}).
		Where("center_id = ?", centerID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("departure_date DESC").
		Find(&records).Error
	return records, total, err
}

func (r *departureHistoryRepo) SumByBatch(ctx context.Context, centerID string, batch int) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&model.DepartureHistory{}).
		Where("center_id = ? AND batch_number = ?", centerID, batch).
		Select("COALESCE(SUM(departed_count), 0)").
		Scan(&total).Error
	return total, err
}
