package dto

// ── 出发请求 ──

// RecordDepartureRequest 登记一次出发
type RecordDepartureRequest struct {
	StageID        string `json:"stage_id"        binding:"required,uuid"`
	DepartureCount int    `json:"departure_count" binding:"required,min=1"`
	Notes          string `json:"notes"           binding:"omitempty,max=500"`
}

// UpdateDepartureCountsRequest RPC 形式的出发登记（兼容旧客户端）
type UpdateDepartureCountsRequest struct {
	CenterID       string `json:"center_id"       binding:"required"`
	StageID        string `json:"stage_id"        binding:"required"`
	DepartureCount int    `json:"departure_count"`
}

// DepartureHistoryListRequest 出发流水分页
type DepartureHistoryListRequest struct {
	PaginationRequest
}

// ── 出发响应 ──

// DepartureRecordResponse 出发流水
type DepartureRecordResponse struct {
	HistoryID     string  `json:"history_id"`
	CenterID      string  `json:"center_id"`
	StageID       *string `json:"stage_id,omitempty"`
	BatchNumber   int     `json:"batch_number"`
	DepartedCount int     `json:"departed_count"`
	DepartureDate string  `json:"departure_date"`
	Notes         string  `json:"notes,omitempty"`
}

// DepartureResponse 出发登记结果（提交后的快照）
type DepartureResponse struct {
	Center    CenterResponse          `json:"center"`
	Stage     StageResponse           `json:"stage"`
	Record    DepartureRecordResponse `json:"record"`
	Activated []string                `json:"activated,omitempty"`
	Refilled  bool                    `json:"refilled"`
}

// UpdateDepartureCountsResponse RPC 结果
type UpdateDepartureCountsResponse struct {
	Success bool `json:"success"`
}
