package handler

import "hajj-management/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Stage     *StageHandler
	Center    *CenterHandler
	Departure *DepartureHandler
	Alert     *AlertHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Stage:     NewStageHandler(svc.Stage, svc.Allocator),
		Center:    NewCenterHandler(svc.Center),
		Departure: NewDepartureHandler(svc.Departure),
		Alert:     NewAlertHandler(svc.Alert),
	}
}
