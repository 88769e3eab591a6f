package dto

// ── 阶段请求 ──

// CreateStageRequest 创建阶段
// status 只允许 inactive / waiting_departure；waiting_departure 必须带 required_departures
type CreateStageRequest struct {
	PilgrimGroupID     string  `json:"pilgrim_group_id"    binding:"required,uuid"`
	AreaID             *string `json:"area_id"             binding:"omitempty,uuid"`
	Name               string  `json:"name"                binding:"omitempty,max=100"`
	AssignedPilgrims   int     `json:"assigned_pilgrims"   binding:"required,min=1"`
	StartDate          string  `json:"start_date"          binding:"required,datetime=2006-01-02"`
	StartTime          string  `json:"start_time"          binding:"required,datetime=15:04"`
	EndDate            string  `json:"end_date"            binding:"required,datetime=2006-01-02"`
	EndTime            string  `json:"end_time"            binding:"required,datetime=15:04"`
	Status             string  `json:"status"              binding:"omitempty,oneof=inactive waiting_departure"`
	RequiredDepartures *int    `json:"required_departures" binding:"omitempty,min=0"`
}

// UpdateStageRequest 编辑阶段（不含计数器）
type UpdateStageRequest struct {
	AreaID             *string `json:"area_id"             binding:"omitempty,uuid"`
	Name               *string `json:"name"                binding:"omitempty,max=100"`
	StartDate          *string `json:"start_date"          binding:"omitempty,datetime=2006-01-02"`
	StartTime          *string `json:"start_time"          binding:"omitempty,datetime=15:04"`
	EndDate            *string `json:"end_date"            binding:"omitempty,datetime=2006-01-02"`
	EndTime            *string `json:"end_time"            binding:"omitempty,datetime=15:04"`
	Status             *string `json:"status"              binding:"omitempty,oneof=inactive waiting_departure"`
	RequiredDepartures *int    `json:"required_departures" binding:"omitempty,min=0"`
}

// StageListRequest 阶段列表筛选
type StageListRequest struct {
	PilgrimGroupID string `form:"pilgrim_group_id" binding:"omitempty,uuid"`
	Status         string `form:"status"           binding:"omitempty,oneof=inactive active waiting_departure completed"`
}

// ── 阶段响应 ──

// StageResponse 阶段信息
type StageResponse struct {
	StageID            string  `json:"stage_id"`
	PilgrimGroupID     string  `json:"pilgrim_group_id"`
	AreaID             *string `json:"area_id,omitempty"`
	Name               string  `json:"name,omitempty"`
	Status             string  `json:"status"`
	AssignedPilgrims   int     `json:"assigned_pilgrims"`
	CurrentPilgrims    int     `json:"current_pilgrims"`
	DepartedPilgrims   int     `json:"departed_pilgrims"`
	StartDate          string  `json:"start_date"`
	StartTime          string  `json:"start_time"`
	EndDate            string  `json:"end_date"`
	EndTime            string  `json:"end_time"`
	RequiredDepartures *int    `json:"required_departures,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// AdmissionResponse 单个等待阶段的判定
type AdmissionResponse struct {
	StageID   string `json:"stage_id"`
	Admitted  bool   `json:"admitted"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
	Reason    string `json:"reason"`
}

// EvaluationResponse 朝觐团等待队列评估结果
type EvaluationResponse struct {
	PilgrimGroupID     string              `json:"pilgrim_group_id"`
	CumulativeDeparted int                 `json:"cumulative_departed"`
	Reserved           int                 `json:"reserved"`
	Activated          []string            `json:"activated"`
	Admissions         []AdmissionResponse `json:"admissions"`
}
