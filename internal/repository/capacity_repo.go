package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hajj-management/internal/model"
	pkgerrors "hajj-management/pkg/errors"
)

// 补员跳过原因
const (
	RefillSkipNotEmpty        = "not_empty"
	RefillSkipNoStage         = "no_stage"
	RefillSkipNoSetting       = "no_setting"
	RefillSkipDisabled        = "disabled"
	RefillSkipAlreadyRefilled = "already_refilled"
)

// DepartureCommand 一次出发登记
type DepartureCommand struct {
	CenterID   string
	StageID    string
	Count      int
	Notes      string
	RecordedBy *string
	At         time.Time
}

// DepartureOutcome 事务提交后的快照
type DepartureOutcome struct {
	Center model.Center
	Stage  model.Stage
	Record model.DepartureHistory
}

// RefillOutcome 补员检查结果；Refilled=false 时 SkipReason 说明原因
type RefillOutcome struct {
	Refilled   bool
	SkipReason string
	Center     model.Center
}

// CapacityRepository 中心/阶段计数器的唯一写入口
//
// 两个方法各自在单个数据库事务内完成：行锁 → 校验 → 条件更新 → (流水/标记)，
// 任一步失败整体回滚，外部读者不会看到部分结果。
type CapacityRepository interface {
	RecordDeparture(ctx context.Context, cmd DepartureCommand) (*DepartureOutcome, error)
	RefillIfEligible(ctx context.Context, centerID string, at time.Time) (*RefillOutcome, error)
}

type capacityRepo struct {
	db *gorm.DB
}

func NewCapacityRepo(db *gorm.DB) CapacityRepository {
	return &capacityRepo{db: db}
}

func (r *capacityRepo) RecordDeparture(ctx context.Context, cmd DepartureCommand) (*DepartureOutcome, error) {
	var out DepartureOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 固定加锁顺序：先中心后阶段
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("center_id = ?", cmd.CenterID).
			First(&out.Center).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("stage_id = ?", cmd.StageID).
			First(&out.Stage).Error; err != nil {
			return err
		}

		if out.Stage.Status == model.StageStatusWaitingDeparture || out.Stage.IsTerminal() {
			return pkgerrors.ErrStageNotDepartable
		}
		if cmd.Count > out.Center.CurrentCount || cmd.Count > out.Stage.CurrentPilgrims {
			return pkgerrors.ErrInsufficientCount
		}

		result := tx.Model(&model.Center{}).
			Where("center_id = ? AND current_count >= ?", cmd.CenterID, cmd.Count).
			Updates(map[string]interface{}{
				"current_count":     gorm.Expr("current_count - ?", cmd.Count),
				"departed_pilgrims": gorm.Expr("departed_pilgrims + ?", cmd.Count),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrInsufficientCount
		}

		result = tx.Model(&model.Stage{}).
			Where("stage_id = ? AND current_pilgrims >= ?", cmd.StageID, cmd.Count).
			Updates(map[string]interface{}{
				"current_pilgrims":  gorm.Expr("current_pilgrims - ?", cmd.Count),
				"departed_pilgrims": gorm.Expr("departed_pilgrims + ?", cmd.Count),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrInsufficientCount
		}

		stageID := cmd.StageID
		out.Record = model.DepartureHistory{
			CenterID:      cmd.CenterID,
			StageID:       &stageID,
			BatchNumber:   out.Center.CurrentBatch,
			DepartedCount: cmd.Count,
			DepartureDate: cmd.At,
			Notes:         cmd.Notes,
			CreatedBy:     cmd.RecordedBy,
		}
		if err := tx.Create(&out.Record).Error; err != nil {
			return err
		}

		out.Center.CurrentCount -= cmd.Count
		out.Center.DepartedPilgrims += cmd.Count
		out.Stage.CurrentPilgrims -= cmd.Count
		out.Stage.DepartedPilgrims += cmd.Count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *capacityRepo) RefillIfEligible(ctx context.Context, centerID string, at time.Time) (*RefillOutcome, error) {
	var out RefillOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("center_id = ?", centerID).
			First(&out.Center).Error; err != nil {
			return err
		}

		if out.Center.CurrentCount != 0 {
			out.SkipReason = RefillSkipNotEmpty
			return nil
		}
		if out.Center.StageID == nil {
			out.SkipReason = RefillSkipNoStage
			return nil
		}

		var setting model.CenterStageRefill
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("center_id = ? AND stage_id = ?", centerID, *out.Center.StageID).
			First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out.SkipReason = RefillSkipNoSetting
			return nil
		}
		if err != nil {
			return err
		}
		if !setting.ShouldRefill {
			out.SkipReason = RefillSkipDisabled
			return nil
		}
		if setting.IsRefilled {
			out.SkipReason = RefillSkipAlreadyRefilled
			return nil
		}

		result := tx.Model(&model.Center{}).
			Where("center_id = ? AND current_count = 0", centerID).
			Updates(map[string]interface{}{
				"current_count":     gorm.Expr("default_capacity"),
				"departed_pilgrims": 0,
				"current_batch":     gorm.Expr("current_batch + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		result = tx.Model(&model.CenterStageRefill{}).
			Where("refill_id = ? AND is_refilled = ?", setting.RefillID, false).
			Updates(map[string]interface{}{
				"is_refilled": true,
				"refill_date": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		out.Refilled = true
		out.Center.CurrentCount = out.Center.DefaultCapacity
		out.Center.DepartedPilgrims = 0
		out.Center.CurrentBatch++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
