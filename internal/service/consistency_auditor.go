package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"hajj-management/internal/engine"
	"hajj-management/internal/model"
	"hajj-management/internal/repository"
)

// AuditReport 一次一致性检查的汇总
type AuditReport struct {
	StagesChecked  int              `json:"stages_checked"`
	CentersChecked int              `json:"centers_checked"`
	Findings       []engine.Finding `json:"findings"`
	Raised         int              `json:"raised"`
	Resolved       int              `json:"resolved"`
}

// ConsistencyAuditor 计数器一致性检查（只观察，从不修正计数器或改变状态）
//
// 阶段偏差写入 stage_alerts 并推送；中心偏差只记录日志。
// 任何内部失败都只记日志，不向调用方返回错误。
type ConsistencyAuditor interface {
	AuditStages(ctx context.Context, stages []model.Stage) *AuditReport
	AuditCenters(ctx context.Context, centers []model.Center) *AuditReport
	AuditAll(ctx context.Context) *AuditReport
}

type consistencyAuditor struct {
	repo   *repository.Repository
	broker AlertBroker
	now    Clock
	logger *zap.Logger
}

// NewConsistencyAuditor 创建 ConsistencyAuditor 实例；broker 可为 nil
func NewConsistencyAuditor(repo *repository.Repository, broker AlertBroker, now Clock, logger *zap.Logger) ConsistencyAuditor {
	return &consistencyAuditor{repo: repo, broker: broker, now: now, logger: logger}
}

// alertEvent 推送给订阅方的告警消息
type alertEvent struct {
	AlertID  string `json:"alert_id"`
	StageID  string `json:"stage_id"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

var stageAlertTypes = []string{model.AlertTypeCountMismatch, model.AlertTypeNegativeCount}

func (a *consistencyAuditor) AuditStages(ctx context.Context, stages []model.Stage) *AuditReport {
	report := &AuditReport{Findings: []engine.Finding{}}
	if len(stages) == 0 {
		return report
	}

	ids := make([]string, len(stages))
	for i := range stages {
		ids[i] = stages[i].StageID
	}
	open := make(map[string]bool)
	alerts, err := a.repo.StageAlert.ListOpenByStages(ctx, ids)
	if err != nil {
		a.logger.Warn("查询未解决告警失败", zap.Error(err))
	}
	for _, al := range alerts {
		open[al.StageID+"/"+al.Type] = true
	}

	for i := range stages {
		stage := stages[i]
		report.StagesChecked++

		found := make(map[string]bool)
		for _, f := range engine.AuditStage(stage) {
			found[f.Type] = true
			report.Findings = append(report.Findings, f)
			a.logger.Warn("阶段计数不一致",
				zap.String("stage_id", f.SubjectID),
				zap.String("type", f.Type),
				zap.Int("expected", f.Expected),
				zap.Int("actual", f.Actual),
			)
			if a.raise(ctx, f) {
				report.Raised++
			}
		}

		// 偏差已消失的未解决告警自动关闭
		for _, t := range stageAlertTypes {
			if found[t] || (err == nil && !open[stage.StageID+"/"+t]) {
				continue
			}
			n, rerr := a.repo.StageAlert.ResolveOpen(ctx, stage.StageID, t, a.now())
			if rerr != nil {
				a.logger.Warn("关闭告警失败", zap.String("stage_id", stage.StageID), zap.Error(rerr))
				continue
			}
			report.Resolved += int(n)
		}
	}
	return report
}

// raise 写入告警；仅在新建时推送
func (a *consistencyAuditor) raise(ctx context.Context, f engine.Finding) bool {
	details, _ := json.Marshal(map[string]int{"expected": f.Expected, "actual": f.Actual})
	alert := &model.StageAlert{
		StageID: f.SubjectID,
		Type:    f.Type,
		Message: f.Message,
		Details: datatypes.JSON(details),
	}

	created, err := a.repo.StageAlert.Raise(ctx, alert)
	if err != nil {
		a.logger.Warn("写入阶段告警失败", zap.String("stage_id", f.SubjectID), zap.Error(err))
		return false
	}
	if created {
		a.publish(ctx, alert, f)
	}
	return created
}

func (a *consistencyAuditor) publish(ctx context.Context, alert *model.StageAlert, f engine.Finding) {
	if a.broker == nil {
		return
	}
	payload, err := json.Marshal(alertEvent{
		AlertID:  alert.AlertID,
		StageID:  alert.StageID,
		Type:     alert.Type,
		Message:  alert.Message,
		Expected: f.Expected,
		Actual:   f.Actual,
	})
	if err != nil {
		return
	}
	if err := a.broker.PublishAlert(ctx, payload); err != nil {
		a.logger.Warn("推送阶段告警失败", zap.String("alert_id", alert.AlertID), zap.Error(err))
	}
}

func (a *consistencyAuditor) AuditCenters(ctx context.Context, centers []model.Center) *AuditReport {
	report := &AuditReport{Findings: []engine.Finding{}}
	for i := range centers {
		center := centers[i]
		report.CentersChecked++

		sum, err := a.repo.DepartureHistory.SumByBatch(ctx, center.CenterID, center.CurrentBatch)
		if err != nil {
			a.logger.Warn("汇总出发流水失败", zap.String("center_id", center.CenterID), zap.Error(err))
			continue
		}
		for _, f := range engine.AuditCenter(center, sum) {
			report.Findings = append(report.Findings, f)
			a.logger.Warn("中心计数不一致",
				zap.String("center_id", f.SubjectID),
				zap.String("type", f.Type),
				zap.String("message", f.Message),
			)
		}
	}
	return report
}

func (a *consistencyAuditor) AuditAll(ctx context.Context) *AuditReport {
	report := &AuditReport{Findings: []engine.Finding{}}

	stages, err := a.repo.Stage.List(ctx, repository.StageFilter{})
	if err != nil {
		a.logger.Warn("一致性检查：查询阶段失败", zap.Error(err))
	} else {
		report.merge(a.AuditStages(ctx, stages))
	}

	centers, err := a.repo.Center.List(ctx)
	if err != nil {
		a.logger.Warn("一致性检查：查询中心失败", zap.Error(err))
	} else {
		report.merge(a.AuditCenters(ctx, centers))
	}
	return report
}

func (r *AuditReport) merge(other *AuditReport) {
	r.StagesChecked += other.StagesChecked
	r.CentersChecked += other.CentersChecked
	r.Findings = append(r.Findings, other.Findings...)
	r.Raised += other.Raised
	r.Resolved += other.Resolved
}
