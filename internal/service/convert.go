package service

import (
	"encoding/json"

	"hajj-management/internal/dto"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
)

func toStageResponse(s *model.Stage) dto.StageResponse {
	return dto.StageResponse{
		StageID:            s.StageID,
		PilgrimGroupID:     s.PilgrimGroupID,
		AreaID:             s.AreaID,
		Name:               s.Name,
		Status:             s.Status,
		AssignedPilgrims:   s.AssignedPilgrims,
		CurrentPilgrims:    s.CurrentPilgrims,
		DepartedPilgrims:   s.DepartedPilgrims,
		StartDate:          s.StartDate.Format(dto.DateLayout),
		StartTime:          s.StartTime,
		EndDate:            s.EndDate.Format(dto.DateLayout),
		EndTime:            s.EndTime,
		RequiredDepartures: s.RequiredDepartures,
		CreatedAt:          s.CreatedAt.Format(dto.TimestampLayout),
		UpdatedAt:          s.UpdatedAt.Format(dto.TimestampLayout),
	}
}

func toStageResponses(stages []model.Stage) []dto.StageResponse {
	result := make([]dto.StageResponse, len(stages))
	for i := range stages {
		result[i] = toStageResponse(&stages[i])
	}
	return result
}

func toCenterResponse(c *model.Center) dto.CenterResponse {
	return dto.CenterResponse{
		CenterID:         c.CenterID,
		Name:             c.Name,
		DefaultCapacity:  c.DefaultCapacity,
		CurrentCount:     c.CurrentCount,
		DepartedPilgrims: c.DepartedPilgrims,
		CurrentBatch:     c.CurrentBatch,
		StageID:          c.StageID,
		UpdatedAt:        c.UpdatedAt.Format(dto.TimestampLayout),
	}
}

func toRefillSettingResponse(r *model.CenterStageRefill) dto.RefillSettingResponse {
	resp := dto.RefillSettingResponse{
		CenterID:     r.CenterID,
		StageID:      r.StageID,
		ShouldRefill: r.ShouldRefill,
		IsRefilled:   r.IsRefilled,
	}
	if r.RefillDate != nil {
		d := r.RefillDate.Format(dto.TimestampLayout)
		resp.RefillDate = &d
	}
	return resp
}

func toRefillResultResponse(centerID string, out *repository.RefillOutcome) dto.RefillResultResponse {
	return dto.RefillResultResponse{
		CenterID:   centerID,
		Refilled:   out.Refilled,
		SkipReason: out.SkipReason,
	}
}

func toDepartureRecordResponse(h *model.DepartureHistory) dto.DepartureRecordResponse {
	return dto.DepartureRecordResponse{
		HistoryID:     h.HistoryID,
		CenterID:      h.CenterID,
		StageID:       h.StageID,
		BatchNumber:   h.BatchNumber,
		DepartedCount: h.DepartedCount,
		DepartureDate: h.DepartureDate.Format(dto.TimestampLayout),
		Notes:         h.Notes,
	}
}

func toStageAlertResponse(a *model.StageAlert) dto.StageAlertResponse {
	resp := dto.StageAlertResponse{
		AlertID:    a.AlertID,
		StageID:    a.StageID,
		Type:       a.Type,
		Message:    a.Message,
		IsResolved: a.IsResolved,
		CreatedAt:  a.CreatedAt.Format(dto.TimestampLayout),
	}
	if len(a.Details) > 0 {
		var details map[string]interface{}
		if err := json.Unmarshal(a.Details, &details); err == nil {
			resp.Details = details
		}
	}
	if a.ResolvedAt != nil {
		r := a.ResolvedAt.Format(dto.TimestampLayout)
		resp.ResolvedAt = &r
	}
	return resp
}
