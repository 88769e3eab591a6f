package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"hajj-management/internal/model"
	"hajj-management/internal/repository"
	pkgerrors "hajj-management/pkg/errors"
)

// ── 内存存储：各 mock repo 共享同一份状态，互斥锁模拟事务 ──

type memStore struct {
	mu      sync.Mutex
	seq     int
	base    time.Time
	groups  map[string]*model.PilgrimGroup
	stages  map[string]*model.Stage
	centers map[string]*model.Center
	refills map[string]*model.CenterStageRefill
	history []model.DepartureHistory
	alerts  map[string]*model.StageAlert

	// activateErr 指定阶段 Activate 时返回的错误
	activateErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		base:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		groups:  make(map[string]*model.PilgrimGroup),
		stages:  make(map[string]*model.Stage),
		centers: make(map[string]*model.Center),
		refills: make(map[string]*model.CenterStageRefill),
		alerts:  make(map[string]*model.StageAlert),

		activateErr: make(map[string]error),
	}
}

// nextID 生成递增 ID，同时返回递增的 created_at
func (m *memStore) nextID(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq), m.base.Add(time.Duration(m.seq) * time.Second)
}

func refillKey(centerID, stageID string) string { return centerID + "/" + stageID }

func newTestRepo(store *memStore) *repository.Repository {
	return &repository.Repository{
		PilgrimGroup:     &mockGroupRepo{store},
		Stage:            &mockStageRepo{store: store},
		Center:           &mockCenterRepo{store},
		RefillSetting:    &mockRefillRepo{store},
		DepartureHistory: &mockHistoryRepo{store},
		StageAlert:       &mockAlertRepo{store},
		Capacity:         &mockCapacityRepo{store},
	}
}

// ── 测试数据构造 ──

func (m *memStore) addGroup(count int) *model.PilgrimGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, at := m.nextID("group")
	g := &model.PilgrimGroup{PilgrimGroupID: id, Name: id, Nationality: "ID", Count: count}
	g.CreatedAt = at
	m.groups[id] = g
	return g
}

func (m *memStore) addStage(s model.Stage) *model.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.StageID == "" {
		s.StageID, s.CreatedAt = m.nextID("stage")
	} else if s.CreatedAt.IsZero() {
		_, s.CreatedAt = m.nextID("stage")
	}
	if s.StartTime == "" {
		s.StartTime = "00:00"
	}
	if s.EndTime == "" {
		s.EndTime = "23:59"
	}
	m.stages[s.StageID] = &s
	cp := s
	return &cp
}

func (m *memStore) addCenter(capacity, current int, stageID *string) *model.Center {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, at := m.nextID("center")
	c := &model.Center{
		CenterID:        id,
		Name:            id,
		DefaultCapacity: capacity,
		CurrentCount:    current,
		CurrentBatch:    1,
		StageID:         stageID,
	}
	c.CreatedAt = at
	m.centers[id] = c
	cp := *c
	return &cp
}

func (m *memStore) setRefill(centerID, stageID string, should, refilled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := m.nextID("refill")
	m.refills[refillKey(centerID, stageID)] = &model.CenterStageRefill{
		RefillID:     id,
		CenterID:     centerID,
		StageID:      stageID,
		ShouldRefill: should,
		IsRefilled:   refilled,
	}
}

func (m *memStore) stage(id string) model.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.stages[id]
}

func (m *memStore) center(id string) model.Center {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.centers[id]
}

func (m *memStore) refill(centerID, stageID string) model.CenterStageRefill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.refills[refillKey(centerID, stageID)]
}

func (m *memStore) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func (m *memStore) openAlerts(stageID string) []model.StageAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.StageAlert
	for _, a := range m.alerts {
		if a.StageID == stageID && !a.IsResolved {
			result = append(result, *a)
		}
	}
	return result
}

// ── Mock PilgrimGroupRepository ──

type mockGroupRepo struct{ m *memStore }

func (r *mockGroupRepo) Create(_ context.Context, group *model.PilgrimGroup) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if group.PilgrimGroupID == "" {
		group.PilgrimGroupID, group.CreatedAt = r.m.nextID("group")
	}
	cp := *group
	r.m.groups[group.PilgrimGroupID] = &cp
	return nil
}

func (r *mockGroupRepo) GetByID(_ context.Context, id string) (*model.PilgrimGroup, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if g, ok := r.m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock StageRepository ──

type mockStageRepo struct {
	store *memStore
	// listErr 非空时 List/ListByStatus 返回该错误
	listErr error
}

func (r *mockStageRepo) Create(_ context.Context, stage *model.Stage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stage.StageID, stage.CreatedAt = r.store.nextID("stage")
	stage.UpdatedAt = stage.CreatedAt
	cp := *stage
	r.store.stages[stage.StageID] = &cp
	return nil
}

func (r *mockStageRepo) GetByID(_ context.Context, id string) (*model.Stage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.stages[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockStageRepo) filter(keep func(*model.Stage) bool) []model.Stage {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []model.Stage
	for _, s := range r.store.stages {
		if keep(s) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].StageID < result[j].StageID
	})
	return result
}

func (r *mockStageRepo) List(_ context.Context, f repository.StageFilter) ([]model.Stage, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.filter(func(s *model.Stage) bool {
		return (f.PilgrimGroupID == "" || s.PilgrimGroupID == f.PilgrimGroupID) &&
			(f.Status == "" || s.Status == f.Status)
	}), nil
}

func (r *mockStageRepo) ListByGroup(_ context.Context, groupID string) ([]model.Stage, error) {
	return r.filter(func(s *model.Stage) bool { return s.PilgrimGroupID == groupID }), nil
}

func (r *mockStageRepo) ListByStatus(_ context.Context, status string) ([]model.Stage, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.filter(func(s *model.Stage) bool { return s.Status == status }), nil
}

func (r *mockStageRepo) ListGroupIDsByStatus(_ context.Context, status string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range r.filter(func(s *model.Stage) bool { return s.Status == status }) {
		if !seen[s.PilgrimGroupID] {
			seen[s.PilgrimGroupID] = true
			ids = append(ids, s.PilgrimGroupID)
		}
	}
	return ids, nil
}

func (r *mockStageRepo) SumAssignedByGroup(_ context.Context, groupID string) (int, error) {
	total := 0
	for _, s := range r.filter(func(s *model.Stage) bool { return s.PilgrimGroupID == groupID }) {
		total += s.AssignedPilgrims
	}
	return total, nil
}

func (r *mockStageRepo) UpdateSchedule(_ context.Context, stage *model.Stage, from string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.stages[stage.StageID]
	if !ok || s.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	s.Name = stage.Name
	s.AreaID = stage.AreaID
	s.Status = stage.Status
	s.StartDate, s.StartTime = stage.StartDate, stage.StartTime
	s.EndDate, s.EndTime = stage.EndDate, stage.EndTime
	s.RequiredDepartures = stage.RequiredDepartures
	s.UpdatedBy = stage.UpdatedBy
	return nil
}

func (r *mockStageRepo) TransitionStatus(_ context.Context, id, from, to string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.stages[id]
	if !ok || s.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	s.Status = to
	return nil
}

func (r *mockStageRepo) Start(_ context.Context, id, from string, startDate time.Time, startTime string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.stages[id]
	if !ok || s.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	s.Status = model.StageStatusActive
	s.StartDate, s.StartTime = startDate, startTime
	return nil
}

func (r *mockStageRepo) Activate(_ context.Context, id, from string, startDate time.Time, startTime string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.activateErr[id]; err != nil {
		return err
	}
	s, ok := r.store.stages[id]
	if !ok || s.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	s.Status = model.StageStatusActive
	s.DepartedPilgrims = 0
	s.StartDate, s.StartTime = startDate, startTime
	return nil
}

// ── Mock CenterRepository ──

type mockCenterRepo struct{ m *memStore }

func (r *mockCenterRepo) Create(_ context.Context, center *model.Center) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	center.CenterID, center.CreatedAt = r.m.nextID("center")
	cp := *center
	r.m.centers[center.CenterID] = &cp
	return nil
}

func (r *mockCenterRepo) GetByID(_ context.Context, id string) (*model.Center, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c, ok := r.m.centers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockCenterRepo) List(_ context.Context) ([]model.Center, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []model.Center
	for _, c := range r.m.centers {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *mockCenterRepo) ListEmptyAssigned(_ context.Context) ([]model.Center, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []model.Center
	for _, c := range r.m.centers {
		if c.CurrentCount == 0 && c.StageID != nil {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (r *mockCenterRepo) AssignStage(_ context.Context, centerID, stageID string, operatorID *string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.centers[centerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.StageID != nil && *c.StageID == stageID {
		return nil
	}
	id := stageID
	c.StageID = &id
	c.UpdatedBy = operatorID
	if setting, ok := r.m.refills[refillKey(centerID, stageID)]; ok {
		setting.IsRefilled = false
		setting.RefillDate = nil
	}
	return nil
}

// ── Mock RefillSettingRepository ──

type mockRefillRepo struct{ m *memStore }

func (r *mockRefillRepo) Get(_ context.Context, centerID, stageID string) (*model.CenterStageRefill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.refills[refillKey(centerID, stageID)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockRefillRepo) SetShouldRefill(ctx context.Context, centerID, stageID string, shouldRefill bool, operatorID *string) (*model.CenterStageRefill, error) {
	r.m.mu.Lock()
	key := refillKey(centerID, stageID)
	s, ok := r.m.refills[key]
	if !ok {
		id, _ := r.m.nextID("refill")
		s = &model.CenterStageRefill{RefillID: id, CenterID: centerID, StageID: stageID}
		s.CreatedBy = operatorID
		r.m.refills[key] = s
	}
	s.ShouldRefill = shouldRefill
	s.UpdatedBy = operatorID
	r.m.mu.Unlock()
	return r.Get(ctx, centerID, stageID)
}

// ── Mock DepartureHistoryRepository ──

type mockHistoryRepo struct{ m *memStore }

func (r *mockHistoryRepo) ListByCenter(_ context.Context, centerID string, offset, limit int) ([]model.DepartureHistory, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []model.DepartureHistory
	for i := len(r.m.history) - 1; i >= 0; i-- {
		if r.m.history[i].CenterID == centerID {
			all = append(all, r.m.history[i])
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []model.DepartureHistory{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *mockHistoryRepo) SumByBatch(_ context.Context, centerID string, batch int) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	total := 0
	for _, h := range r.m.history {
		if h.CenterID == centerID && h.BatchNumber == batch {
			total += h.DepartedCount
		}
	}
	return total, nil
}

// ── Mock StageAlertRepository ──

type mockAlertRepo struct{ m *memStore }

func (r *mockAlertRepo) Raise(_ context.Context, alert *model.StageAlert) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.alerts {
		if a.StageID == alert.StageID && a.Type == alert.Type && !a.IsResolved {
			a.Message = alert.Message
			a.Details = alert.Details
			*alert = *a
			return false, nil
		}
	}
	alert.AlertID, alert.CreatedAt = r.m.nextID("alert")
	cp := *alert
	r.m.alerts[alert.AlertID] = &cp
	return true, nil
}

func (r *mockAlertRepo) ResolveOpen(_ context.Context, stageID, alertType string, at time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, a := range r.m.alerts {
		if a.StageID == stageID && a.Type == alertType && !a.IsResolved {
			a.IsResolved = true
			resolvedAt := at
			a.ResolvedAt = &resolvedAt
			n++
		}
	}
	return n, nil
}

func (r *mockAlertRepo) ListOpenByStages(_ context.Context, stageIDs []string) ([]model.StageAlert, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	wanted := make(map[string]bool, len(stageIDs))
	for _, id := range stageIDs {
		wanted[id] = true
	}
	var result []model.StageAlert
	for _, a := range r.m.alerts {
		if wanted[a.StageID] && !a.IsResolved {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *mockAlertRepo) Resolve(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.alerts[id]
	if !ok || a.IsResolved {
		return gorm.ErrRecordNotFound
	}
	a.IsResolved = true
	a.ResolvedAt = &at
	return nil
}

func (r *mockAlertRepo) GetByID(_ context.Context, id string) (*model.StageAlert, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a, ok := r.m.alerts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockAlertRepo) List(_ context.Context, f repository.StageAlertFilter) ([]model.StageAlert, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []model.StageAlert
	for _, a := range r.m.alerts {
		if f.StageID != "" && a.StageID != f.StageID {
			continue
		}
		if !f.IncludeResolved && a.IsResolved {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, int64(len(result)), nil
}

// ── Mock CapacityRepository ──

type mockCapacityRepo struct{ m *memStore }

func (r *mockCapacityRepo) RecordDeparture(_ context.Context, cmd repository.DepartureCommand) (*repository.DepartureOutcome, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	c, ok := r.m.centers[cmd.CenterID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s, ok := r.m.stages[cmd.StageID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if s.Status == model.StageStatusWaitingDeparture || s.IsTerminal() {
		return nil, pkgerrors.ErrStageNotDepartable
	}
	if cmd.Count > c.CurrentCount || cmd.Count > s.CurrentPilgrims {
		return nil, pkgerrors.ErrInsufficientCount
	}

	c.CurrentCount -= cmd.Count
	c.DepartedPilgrims += cmd.Count
	s.CurrentPilgrims -= cmd.Count
	s.DepartedPilgrims += cmd.Count

	id, _ := r.m.nextID("history")
	stageID := cmd.StageID
	record := model.DepartureHistory{
		HistoryID:     id,
		CenterID:      cmd.CenterID,
		StageID:       &stageID,
		BatchNumber:   c.CurrentBatch,
		DepartedCount: cmd.Count,
		DepartureDate: cmd.At,
		Notes:         cmd.Notes,
		CreatedBy:     cmd.RecordedBy,
	}
	r.m.history = append(r.m.history, record)

	return &repository.DepartureOutcome{Center: *c, Stage: *s, Record: record}, nil
}

func (r *mockCapacityRepo) RefillIfEligible(_ context.Context, centerID string, at time.Time) (*repository.RefillOutcome, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	c, ok := r.m.centers[centerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := &repository.RefillOutcome{}
	switch {
	case c.CurrentCount != 0:
		out.SkipReason = repository.RefillSkipNotEmpty
	case c.StageID == nil:
		out.SkipReason = repository.RefillSkipNoStage
	}
	if out.SkipReason != "" {
		out.Center = *c
		return out, nil
	}

	setting, ok := r.m.refills[refillKey(centerID, *c.StageID)]
	switch {
	case !ok:
		out.SkipReason = repository.RefillSkipNoSetting
	case !setting.ShouldRefill:
		out.SkipReason = repository.RefillSkipDisabled
	case setting.IsRefilled:
		out.SkipReason = repository.RefillSkipAlreadyRefilled
	default:
		c.CurrentCount = c.DefaultCapacity
		c.DepartedPilgrims = 0
		c.CurrentBatch++
		setting.IsRefilled = true
		setting.RefillDate = &at
		out.Refilled = true
	}
	out.Center = *c
	return out, nil
}

// ── Mock AlertBroker ──

type mockBroker struct {
	mu        sync.Mutex
	published [][]byte
	err       error
	ch        chan string
}

func (b *mockBroker) PublishAlert(_ context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, payload)
	return nil
}

func (b *mockBroker) SubscribeAlerts(_ context.Context) (<-chan string, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.ch, nil
}

func (b *mockBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// ── 测试辅助 ──

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func dateOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
