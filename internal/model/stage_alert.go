package model

import (
	"time"

	"gorm.io/datatypes"
)

// 告警类型
const (
	AlertTypeCountMismatch = "count_mismatch"
	AlertTypeNegativeCount = "negative_count"
)

// StageAlert 阶段告警 — 对应 stage_alerts（纯观察，不参与状态流转）
type StageAlert struct {
	AlertID    string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"alert_id"`
	StageID    string         `gorm:"type:uuid;not null;index"                       json:"stage_id"`
	Type       string         `gorm:"type:varchar(30);not null"                      json:"type"`
	Message    string         `gorm:"type:varchar(500);not null"                     json:"message"`
	Details    datatypes.JSON `gorm:"type:jsonb"                                     json:"details,omitempty"`
	IsResolved bool           `gorm:"not null;default:false"                         json:"is_resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (StageAlert) TableName() string { return "stage_alerts" }
