package job

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"hajj-management/internal/service"
	"hajj-management/pkg/pgnotify"
)

// CenterChange centers 表触发器发出的通知内容
type CenterChange struct {
	CenterID     string  `json:"center_id"`
	CurrentCount int     `json:"current_count"`
	StageID      *string `json:"stage_id"`
}

// NewCenterChangeHandler 中心人数归零时检查补员；连接重建后做一次全量轮询
func NewCenterChangeHandler(replenisher service.CapacityReplenisher, logger *zap.Logger) pgnotify.Handler {
	return func(ctx context.Context, payload string) {
		if payload == "" {
			n, err := replenisher.SweepEmptyCenters(ctx)
			if err != nil {
				logger.Warn("重连后补员轮询失败", zap.Error(err))
				return
			}
			logger.Info("重连后补员轮询完成", zap.Int("refilled", n))
			return
		}

		var change CenterChange
		if err := json.Unmarshal([]byte(payload), &change); err != nil {
			logger.Warn("无法解析中心变更通知", zap.String("payload", payload), zap.Error(err))
			return
		}
		if change.CurrentCount != 0 || change.StageID == nil {
			return
		}

		if _, err := replenisher.CheckAndRefill(ctx, change.CenterID); err != nil {
			logger.Warn("通知触发补员失败", zap.String("center_id", change.CenterID), zap.Error(err))
		}
	}
}
