package dto

// ── 中心请求 ──

// AssignStageRequest 为中心分配阶段
type AssignStageRequest struct {
	StageID string `json:"stage_id" binding:"required,uuid"`
}

// RefillToggleRequest 设置 (中心, 阶段) 的自动补员开关
type RefillToggleRequest struct {
	StageID      string `json:"stage_id"      binding:"required,uuid"`
	ShouldRefill *bool  `json:"should_refill" binding:"required"`
}

// ── 中心响应 ──

// CenterResponse 中心信息
type CenterResponse struct {
	CenterID         string  `json:"center_id"`
	Name             string  `json:"name"`
	DefaultCapacity  int     `json:"default_capacity"`
	CurrentCount     int     `json:"current_count"`
	DepartedPilgrims int     `json:"departed_pilgrims"`
	CurrentBatch     int     `json:"current_batch"`
	StageID          *string `json:"stage_id,omitempty"`
	UpdatedAt        string  `json:"updated_at"`
}

// RefillSettingResponse 补员设置
type RefillSettingResponse struct {
	CenterID     string  `json:"center_id"`
	StageID      string  `json:"stage_id"`
	ShouldRefill bool    `json:"should_refill"`
	IsRefilled   bool    `json:"is_refilled"`
	RefillDate   *string `json:"refill_date,omitempty"`
}

// RefillResultResponse 一次补员检查的结果
type RefillResultResponse struct {
	CenterID   string `json:"center_id"`
	Refilled   bool   `json:"refilled"`
	SkipReason string `json:"skip_reason,omitempty"`
}
