package model

import "time"

// 阶段状态
const (
	StageStatusInactive         = "inactive"
	StageStatusActive           = "active"
	StageStatusWaitingDeparture = "waiting_departure"
	StageStatusCompleted        = "completed"
)

// Stage 出发阶段 — 对应 stages
//
// 创建时 CurrentPilgrims + DepartedPilgrims == AssignedPilgrims，
// 之后仅由 DepartureRecorder 同时移动两个计数器。
type Stage struct {
	StageID            string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"stage_id"`
	PilgrimGroupID     string    `gorm:"type:uuid;not null;index"                       json:"pilgrim_group_id"`
	AreaID             *string   `gorm:"type:uuid"                                      json:"area_id,omitempty"`
	Name               string    `gorm:"type:varchar(100)"                              json:"name,omitempty"`
	Status             string    `gorm:"type:varchar(20);not null;default:'inactive'"   json:"status"` // inactive | active | waiting_departure | completed
	AssignedPilgrims   int       `gorm:"not null;default:0"                             json:"assigned_pilgrims"`
	CurrentPilgrims    int       `gorm:"not null;default:0"                             json:"current_pilgrims"`
	DepartedPilgrims   int       `gorm:"not null;default:0"                             json:"departed_pilgrims"`
	StartDate          time.Time `gorm:"type:date;not null"                             json:"start_date"`
	StartTime          string    `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndDate            time.Time `gorm:"type:date;not null"                             json:"end_date"`
	EndTime            string    `gorm:"type:varchar(5);not null"                       json:"end_time"` // HH:MM
	RequiredDepartures *int      `json:"required_departures,omitempty"`
	BaseModel

	// 关联
	PilgrimGroup *PilgrimGroup `gorm:"foreignKey:PilgrimGroupID;references:PilgrimGroupID" json:"pilgrim_group,omitempty"`
}

func (Stage) TableName() string { return "stages" }

// IsTerminal 阶段是否已结束
func (s *Stage) IsTerminal() bool { return s.Status == StageStatusCompleted }
