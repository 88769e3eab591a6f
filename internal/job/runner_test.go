package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"hajj-management/internal/dto"
)

type mockLocker struct {
	mu    sync.Mutex
	allow bool
	err   error
	names []string
}

func (l *mockLocker) TryLock(_ context.Context, name string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	return l.allow, l.err
}

func countingJob(name string, counter *atomic.Int32, err error) Job {
	return Job{
		Name:     name,
		Interval: time.Hour,
		Run: func(context.Context) error {
			counter.Add(1)
			return err
		},
	}
}

func TestRunner_RunOnce_JoinsErrors(t *testing.T) {
	var ok, failed atomic.Int32
	r := NewRunnerWithJobs([]Job{
		countingJob("ok", &ok, nil),
		countingJob("broken", &failed, errors.New("boom")),
	}, nil, time.Second, zap.NewNop())

	err := r.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken: boom") {
		t.Fatalf("期望包含 broken: boom 的错误，实际: %v", err)
	}
	if ok.Load() != 1 || failed.Load() != 1 {
		t.Errorf("每个任务应各执行一次，实际 ok=%d broken=%d", ok.Load(), failed.Load())
	}
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := NewRunnerWithJobs([]Job{{
		Name:     "panicky",
		Interval: time.Hour,
		Run:      func(context.Context) error { panic("bad state") },
	}}, nil, 0, zap.NewNop())

	err := r.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Errorf("panic 应转换为错误，实际: %v", err)
	}
}

func TestRunner_AppliesTimeout(t *testing.T) {
	r := NewRunnerWithJobs([]Job{{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}, nil, 20*time.Millisecond, zap.NewNop())

	err := r.RunOnce(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("期望 DeadlineExceeded，实际: %v", err)
	}
}

func TestRunner_Run_ImmediateTickAndStop(t *testing.T) {
	var n atomic.Int32
	r := NewRunnerWithJobs([]Job{countingJob("tick", &n, nil)}, nil, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(time.Second)
	for n.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("启动后应立即执行一次")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("正常停止不应返回错误: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ctx 结束后 Run 应返回")
	}
}

func TestRunner_LockHeldElsewhereSkips(t *testing.T) {
	var n atomic.Int32
	locker := &mockLocker{allow: false}
	r := NewRunnerWithJobs([]Job{countingJob("locked", &n, nil)}, locker, time.Second, zap.NewNop())

	r.tick(context.Background(), r.jobs[0])
	if n.Load() != 0 {
		t.Error("未获得锁时不应执行")
	}

	locker.allow = true
	r.tick(context.Background(), r.jobs[0])
	if n.Load() != 1 {
		t.Error("获得锁后应执行")
	}
}

func TestRunner_LockErrorStillRuns(t *testing.T) {
	var n atomic.Int32
	locker := &mockLocker{err: errors.New("redis down")}
	r := NewRunnerWithJobs([]Job{countingJob("degraded", &n, nil)}, locker, time.Second, zap.NewNop())

	r.tick(context.Background(), r.jobs[0])
	if n.Load() != 1 {
		t.Error("锁服务不可用时应降级执行")
	}
}

func TestLockTTL(t *testing.T) {
	if got := lockTTL(time.Minute); got != 54*time.Second {
		t.Errorf("期望 54s，实际=%v", got)
	}
	if got := lockTTL(100 * time.Millisecond); got != time.Second {
		t.Errorf("期望下限 1s，实际=%v", got)
	}
}

// ── 中心变更通知 ──

type mockReplenisher struct {
	mu      sync.Mutex
	checked []string
	sweeps  int
}

func (m *mockReplenisher) CheckAndRefill(_ context.Context, centerID string) (*dto.RefillResultResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, centerID)
	return &dto.RefillResultResponse{CenterID: centerID, Refilled: true}, nil
}

func (m *mockReplenisher) SweepEmptyCenters(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return 0, nil
}

func TestCenterChangeHandler(t *testing.T) {
	rep := &mockReplenisher{}
	handle := NewCenterChangeHandler(rep, zap.NewNop())
	ctx := context.Background()

	handle(ctx, `{"center_id":"c-1","current_count":0,"stage_id":"s-1"}`)
	handle(ctx, `{"center_id":"c-2","current_count":7,"stage_id":"s-1"}`)
	handle(ctx, `{"center_id":"c-3","current_count":0,"stage_id":null}`)
	handle(ctx, `not json`)
	handle(ctx, "")

	if len(rep.checked) != 1 || rep.checked[0] != "c-1" {
		t.Errorf("只有归零且已分配阶段的中心应触发补员，实际=%v", rep.checked)
	}
	if rep.sweeps != 1 {
		t.Errorf("重连通知应触发一次全量轮询，实际=%d", rep.sweeps)
	}
}
