package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hajj-management/internal/model"
)

func TestAuditStage_Consistent(t *testing.T) {
	s := model.Stage{StageID: "s1", AssignedPilgrims: 50, CurrentPilgrims: 30, DepartedPilgrims: 20}

	assert.Empty(t, AuditStage(s))
}

func TestAuditStage_ManualEditDrift(t *testing.T) {
	s := model.Stage{StageID: "s1", AssignedPilgrims: 50, CurrentPilgrims: 40, DepartedPilgrims: 20}

	findings := AuditStage(s)

	require.Len(t, findings, 1)
	assert.Equal(t, model.AlertTypeCountMismatch, findings[0].Type)
	assert.Equal(t, 50, findings[0].Expected)
	assert.Equal(t, 60, findings[0].Actual)
}

func TestAuditStage_NegativeCounter(t *testing.T) {
	s := model.Stage{StageID: "s1", AssignedPilgrims: 0, CurrentPilgrims: -3, DepartedPilgrims: 3}

	findings := AuditStage(s)

	require.Len(t, findings, 1)
	assert.Equal(t, model.AlertTypeNegativeCount, findings[0].Type)
}

func TestAuditCenter(t *testing.T) {
	c := model.Center{CenterID: "c1", DefaultCapacity: 50, CurrentCount: 30, DepartedPilgrims: 20, CurrentBatch: 2}

	assert.Empty(t, AuditCenter(c, 20))

	findings := AuditCenter(c, 15)
	require.Len(t, findings, 1)
	assert.Equal(t, FindingLedgerMismatch, findings[0].Type)

	c.CurrentCount = 60
	findings = AuditCenter(c, 20)
	require.Len(t, findings, 1)
	assert.Equal(t, FindingOverCapacity, findings[0].Type)
}
