package engine

import (
	"sort"
	"time"

	"hajj-management/internal/model"
)

// 排队结果原因
const (
	ReasonAdmitted           = "admitted"
	ReasonInsufficient       = "insufficient_departures"
	ReasonMissingRequirement = "missing_required_departures"
	ReasonQueuedBehind       = "queued_behind"
)

// QueuedStage 等待队列中的阶段
type QueuedStage struct {
	StageID            string
	CreatedAt          time.Time
	RequiredDepartures *int
}

// Admission 单个等待阶段的判定结果
type Admission struct {
	StageID   string
	Admit     bool
	Available int
	Required  int
	Reason    string
}

// Plan 一次 FIFO 预留的完整结果
type Plan struct {
	CumulativeDeparted int
	Reserved           int // 本次放行阶段的门槛之和
	Admissions         []Admission
}

// Admitted 返回本次应放行的阶段 ID（按队列顺序）
func (p Plan) Admitted() []string {
	var ids []string
	for _, a := range p.Admissions {
		if a.Admit {
			ids = append(ids, a.StageID)
		}
	}
	return ids
}

// GroupLedger 从同一朝觐团的全部阶段中派生出预留所需的两个量
//   - cumulative: active/completed 阶段的 departed_pilgrims 之和
//   - queue:      waiting_departure 阶段
func GroupLedger(stages []model.Stage) (cumulative int, queue []QueuedStage) {
	for _, s := range stages {
		switch s.Status {
		case model.StageStatusActive, model.StageStatusCompleted:
			cumulative += nonNegative(s.DepartedPilgrims)
		case model.StageStatusWaitingDeparture:
			queue = append(queue, QueuedStage{
				StageID:            s.StageID,
				CreatedAt:          s.CreatedAt,
				RequiredDepartures: s.RequiredDepartures,
			})
		}
	}
	return cumulative, queue
}

// PlanAdmissions 严格 FIFO 预留：
// reserved 每次从 0 开始，按 created_at 升序遍历等待阶段，available = cumulative − reserved（下限 0），
// 满足门槛则放行并累加预留；第一个不满足的阶段阻塞其后所有阶段。
func PlanAdmissions(cumulative int, queue []QueuedStage) Plan {
	ordered := make([]QueuedStage, len(queue))
	copy(ordered, queue)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].StageID < ordered[j].StageID
	})

	plan := Plan{
		CumulativeDeparted: nonNegative(cumulative),
		Admissions:         make([]Admission, 0, len(ordered)),
	}
	reserved := 0
	blocked := false

	for _, q := range ordered {
		available := nonNegative(plan.CumulativeDeparted - reserved)
		adm := Admission{StageID: q.StageID, Available: available}

		switch {
		case blocked:
			adm.Reason = ReasonQueuedBehind
			if q.RequiredDepartures != nil {
				adm.Required = *q.RequiredDepartures
			}
		case q.RequiredDepartures == nil || *q.RequiredDepartures < 0:
			adm.Reason = ReasonMissingRequirement
			blocked = true
		case available >= *q.RequiredDepartures:
			adm.Admit = true
			adm.Required = *q.RequiredDepartures
			adm.Reason = ReasonAdmitted
			reserved += adm.Required
		default:
			adm.Required = *q.RequiredDepartures
			adm.Reason = ReasonInsufficient
			blocked = true
		}

		plan.Admissions = append(plan.Admissions, adm)
	}

	plan.Reserved = reserved
	return plan
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
