package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hajj-management/config"
	"hajj-management/internal/service"
)

// 任务名（同时用作 Redis 互斥锁的 key）
const (
	JobStageWindowSweep  = "stage_window_sweep"
	JobWaitingEvaluation = "waiting_evaluation"
	JobRefillCheck       = "refill_check"
	JobConsistencyAudit  = "consistency_audit"
)

// Locker 跨副本互斥；nil 时每个副本都执行
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Job 一个周期任务
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner 周期任务调度：每个任务一个 goroutine，启动时立即执行一次，之后按间隔执行
//
// 单次执行失败只记日志，下一次 tick 会基于最新的持久化状态重新计算。
type Runner struct {
	jobs    []Job
	locker  Locker
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner 按配置装配引擎的四个周期任务
func NewRunner(svc *service.Service, cfg *config.EngineConfig, locker Locker, logger *zap.Logger) *Runner {
	jobs := []Job{
		{
			Name:     JobStageWindowSweep,
			Interval: cfg.WindowSweepInterval,
			Run: func(ctx context.Context) error {
				result, err := svc.Scheduler.Sweep(ctx, time.Now())
				if err != nil {
					return err
				}
				logger.Debug("时间窗口巡检完成",
					zap.Int("checked", result.Checked),
					zap.Int("deactivated", len(result.Deactivated)),
				)
				return nil
			},
		},
		{
			Name:     JobWaitingEvaluation,
			Interval: cfg.WaitingEvalInterval,
			Run: func(ctx context.Context) error {
				n, err := svc.Allocator.EvaluateAll(ctx)
				if n > 0 {
					logger.Info("等待队列评估放行", zap.Int("activated", n))
				}
				return err
			},
		},
		{
			Name:     JobRefillCheck,
			Interval: cfg.RefillCheckInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.Replenisher.SweepEmptyCenters(ctx)
				return err
			},
		},
		{
			Name:     JobConsistencyAudit,
			Interval: cfg.AuditInterval,
			Run: func(ctx context.Context) error {
				report := svc.Auditor.AuditAll(ctx)
				if len(report.Findings) > 0 {
					logger.Warn("一致性检查发现偏差",
						zap.Int("findings", len(report.Findings)),
						zap.Int("raised", report.Raised),
					)
				}
				return nil
			},
		},
	}
	return NewRunnerWithJobs(jobs, locker, cfg.SweepTimeout, logger)
}

// NewRunnerWithJobs 使用自定义任务列表
func NewRunnerWithJobs(jobs []Job, locker Locker, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{jobs: jobs, locker: locker, timeout: timeout, logger: logger}
}

// Run 阻塞直到 ctx 结束
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range r.jobs {
		g.Go(func() error {
			r.loop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

// RunOnce 顺序执行每个任务一次（不加锁），返回所有失败
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range r.jobs {
		if err := r.execute(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) loop(ctx context.Context, j Job) {
	r.logger.Info("周期任务已启动", zap.String("job", j.Name), zap.Duration("interval", j.Interval))

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	r.tick(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, j)
		}
	}
}

func (r *Runner) tick(ctx context.Context, j Job) {
	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, j.Name, lockTTL(j.Interval))
		if err != nil {
			// Redis 不可用时仍执行：所有任务都是幂等的
			r.logger.Warn("获取任务锁失败，继续执行", zap.String("job", j.Name), zap.Error(err))
		} else if !ok {
			r.logger.Debug("其他副本正在执行，跳过", zap.String("job", j.Name))
			return
		}
	}

	if err := r.execute(ctx, j); err != nil {
		r.logger.Warn("周期任务执行失败", zap.String("job", j.Name), zap.Error(err))
	}
}

func (r *Runner) execute(ctx context.Context, j Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("周期任务 panic", zap.String("job", j.Name), zap.Any("panic", p))
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return j.Run(ctx)
}

// lockTTL 略短于间隔，保证下一次 tick 能重新获取
func lockTTL(interval time.Duration) time.Duration {
	ttl := interval * 9 / 10
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
