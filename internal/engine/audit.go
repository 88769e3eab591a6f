package engine

import (
	"fmt"

	"hajj-management/internal/model"
)

// 中心级检查类型（只记录日志，不落告警表）
const (
	FindingLedgerMismatch = "ledger_mismatch"
	FindingOverCapacity   = "over_capacity"
)

// Finding 一致性检查发现的偏差
type Finding struct {
	SubjectID string
	Type      string
	Message   string
	Expected  int
	Actual    int
}

// AuditStage 重新计算 current + departed 并与分配人数比较
func AuditStage(s model.Stage) []Finding {
	var findings []Finding

	if s.CurrentPilgrims < 0 || s.DepartedPilgrims < 0 {
		findings = append(findings, Finding{
			SubjectID: s.StageID,
			Type:      model.AlertTypeNegativeCount,
			Message: fmt.Sprintf("阶段计数为负: 当前 %d, 已出发 %d",
				s.CurrentPilgrims, s.DepartedPilgrims),
			Expected: 0,
			Actual:   min(s.CurrentPilgrims, s.DepartedPilgrims),
		})
	}

	total := s.CurrentPilgrims + s.DepartedPilgrims
	if total != s.AssignedPilgrims {
		findings = append(findings, Finding{
			SubjectID: s.StageID,
			Type:      model.AlertTypeCountMismatch,
			Message: fmt.Sprintf("阶段人数不一致: 当前 %d + 已出发 %d = %d, 分配 %d",
				s.CurrentPilgrims, s.DepartedPilgrims, total, s.AssignedPilgrims),
			Expected: s.AssignedPilgrims,
			Actual:   total,
		})
	}

	return findings
}

// AuditCenter 比较中心的 departed_pilgrims 与当前批次流水之和
func AuditCenter(c model.Center, ledgerSum int) []Finding {
	var findings []Finding

	if ledgerSum != c.DepartedPilgrims {
		findings = append(findings, Finding{
			SubjectID: c.CenterID,
			Type:      FindingLedgerMismatch,
			Message: fmt.Sprintf("中心第 %d 批出发流水合计 %d, 计数器为 %d",
				c.CurrentBatch, ledgerSum, c.DepartedPilgrims),
			Expected: ledgerSum,
			Actual:   c.DepartedPilgrims,
		})
	}
	if c.CurrentCount > c.DefaultCapacity {
		findings = append(findings, Finding{
			SubjectID: c.CenterID,
			Type:      FindingOverCapacity,
			Message: fmt.Sprintf("中心当前人数 %d 超出默认容量 %d",
				c.CurrentCount, c.DefaultCapacity),
			Expected: c.DefaultCapacity,
			Actual:   c.CurrentCount,
		})
	}

	return findings
}
