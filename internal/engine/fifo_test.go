package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hajj-management/internal/model"
)

func intPtr(n int) *int { return &n }

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestPlanAdmissions_FIFOReservesEarlierStageFirst(t *testing.T) {
	queue := []QueuedStage{
		{StageID: "w2", CreatedAt: t0.Add(time.Minute), RequiredDepartures: intPtr(5)},
		{StageID: "w1", CreatedAt: t0, RequiredDepartures: intPtr(10)},
	}

	plan := PlanAdmissions(12, queue)

	require.Len(t, plan.Admissions, 2)
	assert.Equal(t, "w1", plan.Admissions[0].StageID)
	assert.True(t, plan.Admissions[0].Admit)
	assert.Equal(t, 12, plan.Admissions[0].Available)

	assert.Equal(t, "w2", plan.Admissions[1].StageID)
	assert.False(t, plan.Admissions[1].Admit)
	assert.Equal(t, 2, plan.Admissions[1].Available)
	assert.Equal(t, ReasonInsufficient, plan.Admissions[1].Reason)

	assert.Equal(t, []string{"w1"}, plan.Admitted())
	assert.Equal(t, 10, plan.Reserved)
}

func TestPlanAdmissions_UnsatisfiedHeadBlocksSmallerLaterRequirement(t *testing.T) {
	queue := []QueuedStage{
		{StageID: "w1", CreatedAt: t0, RequiredDepartures: intPtr(20)},
		{StageID: "w2", CreatedAt: t0.Add(time.Minute), RequiredDepartures: intPtr(3)},
	}

	plan := PlanAdmissions(12, queue)

	assert.Empty(t, plan.Admitted())
	assert.Equal(t, ReasonInsufficient, plan.Admissions[0].Reason)
	assert.Equal(t, ReasonQueuedBehind, plan.Admissions[1].Reason)
}

func TestPlanAdmissions_MissingRequirementBlocksQueue(t *testing.T) {
	queue := []QueuedStage{
		{StageID: "w1", CreatedAt: t0},
		{StageID: "w2", CreatedAt: t0.Add(time.Minute), RequiredDepartures: intPtr(1)},
	}

	plan := PlanAdmissions(100, queue)

	assert.Empty(t, plan.Admitted())
	assert.Equal(t, ReasonMissingRequirement, plan.Admissions[0].Reason)
	assert.Equal(t, ReasonQueuedBehind, plan.Admissions[1].Reason)
}

func TestPlanAdmissions_ReservedStartsFromZeroEachEvaluation(t *testing.T) {
	// w1 已在上一轮放行，本轮只剩 w2；预留不继承上一轮的结果
	queue := []QueuedStage{
		{StageID: "w2", CreatedAt: t0.Add(time.Minute), RequiredDepartures: intPtr(5)},
	}

	plan := PlanAdmissions(12, queue)

	assert.Equal(t, []string{"w2"}, plan.Admitted())
	assert.Equal(t, 12, plan.Admissions[0].Available)
	assert.Equal(t, 5, plan.Reserved)
}

func TestPlanAdmissions_AvailableClampedAtZero(t *testing.T) {
	// 来源流水被修正后 cumulative 可能为负
	queue := []QueuedStage{
		{StageID: "w1", CreatedAt: t0, RequiredDepartures: intPtr(0)},
		{StageID: "w2", CreatedAt: t0.Add(time.Minute), RequiredDepartures: intPtr(1)},
	}

	plan := PlanAdmissions(-3, queue)

	require.Len(t, plan.Admissions, 2)
	assert.Equal(t, 0, plan.Admissions[0].Available)
	assert.True(t, plan.Admissions[0].Admit)
	assert.Equal(t, 0, plan.Admissions[1].Available)
	assert.False(t, plan.Admissions[1].Admit)
}

func TestPlanAdmissions_TiesBrokenByStageID(t *testing.T) {
	queue := []QueuedStage{
		{StageID: "b", CreatedAt: t0, RequiredDepartures: intPtr(5)},
		{StageID: "a", CreatedAt: t0, RequiredDepartures: intPtr(5)},
	}

	plan := PlanAdmissions(5, queue)

	assert.Equal(t, []string{"a"}, plan.Admitted())
}

func TestGroupLedger_PartitionsByStatus(t *testing.T) {
	stages := []model.Stage{
		{StageID: "c1", Status: model.StageStatusCompleted, DepartedPilgrims: 7},
		{StageID: "a1", Status: model.StageStatusActive, DepartedPilgrims: 5, RequiredDepartures: intPtr(4)},
		{StageID: "i1", Status: model.StageStatusInactive, DepartedPilgrims: 99},
		{StageID: "w1", Status: model.StageStatusWaitingDeparture, RequiredDepartures: intPtr(3)},
	}

	cumulative, queue := GroupLedger(stages)

	assert.Equal(t, 12, cumulative)
	require.Len(t, queue, 1)
	assert.Equal(t, "w1", queue[0].StageID)
}

func TestGroupLedger_RequirementOnNonQueuedStageDoesNotBlock(t *testing.T) {
	// 从未排队的阶段带有 required_departures，不影响后续等待阶段
	stages := []model.Stage{
		{StageID: "c1", Status: model.StageStatusCompleted, DepartedPilgrims: 20, RequiredDepartures: intPtr(100)},
		{StageID: "w1", Status: model.StageStatusWaitingDeparture, BaseModel: model.BaseModel{CreatedAt: t0}, RequiredDepartures: intPtr(10)},
	}

	cumulative, queue := GroupLedger(stages)
	plan := PlanAdmissions(cumulative, queue)

	assert.Equal(t, []string{"w1"}, plan.Admitted())
	assert.Equal(t, 20, plan.Admissions[0].Available)
}

func TestGroupLedger_AdmittedStageRequirementIsNotSubtracted(t *testing.T) {
	stages := []model.Stage{
		{StageID: "c1", Status: model.StageStatusCompleted, DepartedPilgrims: 12},
		{StageID: "w1", Status: model.StageStatusActive, DepartedPilgrims: 0, RequiredDepartures: intPtr(10)},
		{StageID: "w2", Status: model.StageStatusWaitingDeparture, BaseModel: model.BaseModel{CreatedAt: t0}, RequiredDepartures: intPtr(5)},
	}

	cumulative, queue := GroupLedger(stages)
	plan := PlanAdmissions(cumulative, queue)

	assert.Equal(t, []string{"w2"}, plan.Admitted())
	assert.Equal(t, 12, plan.Admissions[0].Available)
}

// TestPlanAdmissions_Invariants 随机验证：
// 放行的门槛之和不超过可用出发人数；放行集合是排序后队列的前缀。
func TestPlanAdmissions_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 300; trial++ {
		cumulative := rng.Intn(200)
		n := rng.Intn(8) + 1

		queue := make([]QueuedStage, n)
		for i := range queue {
			queue[i] = QueuedStage{
				StageID:            string(rune('a' + i)),
				CreatedAt:          t0.Add(time.Duration(rng.Intn(1000)) * time.Second),
				RequiredDepartures: intPtr(rng.Intn(60)),
			}
		}

		plan := PlanAdmissions(cumulative, queue)
		require.Len(t, plan.Admissions, n)

		admittedSum := 0
		seenBlocked := false
		for _, a := range plan.Admissions {
			assert.GreaterOrEqual(t, a.Available, 0)
			if a.Admit {
				assert.False(t, seenBlocked, "trial %d: 阻塞之后不应再放行", trial)
				admittedSum += a.Required
			} else {
				seenBlocked = true
			}
		}

		assert.LessOrEqual(t, admittedSum, cumulative, "trial %d", trial)
		assert.Equal(t, admittedSum, plan.Reserved)
	}
}
