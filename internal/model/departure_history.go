package model

import "time"

// DepartureHistory 出发流水 — 对应 departure_history（只追加，不修改不删除）
type DepartureHistory struct {
	HistoryID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"history_id"`
	CenterID      string    `gorm:"type:uuid;not null;index:idx_history_center_batch,priority:1" json:"center_id"`
	StageID       *string   `gorm:"type:uuid;index"                                json:"stage_id,omitempty"`
	BatchNumber   int       `gorm:"not null;index:idx_history_center_batch,priority:2" json:"batch_number"`
	DepartedCount int       `gorm:"not null"                                       json:"departed_count"`
	DepartureDate time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"departure_date"`
	Notes         string    `gorm:"type:varchar(500)"                              json:"notes,omitempty"`
	CreatedBy     *string   `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (DepartureHistory) TableName() string { return "departure_history" }
