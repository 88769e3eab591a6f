package model

import "time"

// Center 集散中心 — 对应 centers
// CurrentCount / DepartedPilgrims / CurrentBatch 仅由 CapacityRepository 修改
type Center struct {
	CenterID         string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"center_id"`
	Name             string  `gorm:"type:varchar(100);not null"                     json:"name"`
	DefaultCapacity  int     `gorm:"not null;default:0"                             json:"default_capacity"`
	CurrentCount     int     `gorm:"not null;default:0"                             json:"current_count"`
	DepartedPilgrims int     `gorm:"not null;default:0"                             json:"departed_pilgrims"` // 自上次补员以来
	CurrentBatch     int     `gorm:"not null;default:1"                             json:"current_batch"`
	StageID          *string `gorm:"type:uuid;index"                                json:"stage_id,omitempty"`
	BaseModel

	// 关联
	Stage *Stage `gorm:"foreignKey:StageID;references:StageID" json:"stage,omitempty"`
}

func (Center) TableName() string { return "centers" }

// CenterStageRefill 中心-阶段补员设置 — 对应 center_stage_refills
type CenterStageRefill struct {
	RefillID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"     json:"refill_id"`
	CenterID     string     `gorm:"type:uuid;not null;uniqueIndex:uk_center_stage"     json:"center_id"`
	StageID      string     `gorm:"type:uuid;not null;uniqueIndex:uk_center_stage"     json:"stage_id"`
	ShouldRefill bool       `gorm:"not null;default:false"                             json:"should_refill"`
	IsRefilled   bool       `gorm:"not null;default:false"                             json:"is_refilled"` // 同一分配周期内只补员一次
	RefillDate   *time.Time `json:"refill_date,omitempty"`
	BaseModel
}

func (CenterStageRefill) TableName() string { return "center_stage_refills" }
