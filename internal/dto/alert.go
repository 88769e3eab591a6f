package dto

// AlertListRequest 告警列表筛选
type AlertListRequest struct {
	PaginationRequest
	StageID         string `form:"stage_id"         binding:"omitempty,uuid"`
	IncludeResolved bool   `form:"include_resolved"`
}

// StageAlertResponse 阶段告警
type StageAlertResponse struct {
	AlertID    string                 `json:"alert_id"`
	StageID    string                 `json:"stage_id"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IsResolved bool                   `json:"is_resolved"`
	ResolvedAt *string                `json:"resolved_at,omitempty"`
	CreatedAt  string                 `json:"created_at"`
}
