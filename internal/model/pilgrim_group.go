package model

// PilgrimGroup 朝觐团 — 对应 pilgrim_groups
// Count 为创建时分配的总人数，引擎从不修改
type PilgrimGroup struct {
	PilgrimGroupID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pilgrim_group_id"`
	Name           string `gorm:"type:varchar(100);not null"                     json:"name"`
	Nationality    string `gorm:"type:varchar(100);not null;index"               json:"nationality"`
	Count          int    `gorm:"not null;default:0"                             json:"count"`
	BaseModel

	// 关联
	Stages []Stage `gorm:"foreignKey:PilgrimGroupID" json:"stages,omitempty"`
}

func (PilgrimGroup) TableName() string { return "pilgrim_groups" }
