package scheduler

import (
	"context"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"OpenAgent-Chain/internal/config"
	"OpenAgent-Chain/pkg/logger"
)

// Runner 是一轮管道执行。实现不向调度器抛错，失败在内部消化。
type Runner interface {
	RunCycle(ctx context.Context)
}

// Scheduler 以随机化的活跃窗口驱动管道：随机等一段时间激活，
// 在 15–20 分钟的窗口内按 30–180 秒的随机间隔连续执行，然后休眠，
// 所有区间每轮重新抽取。随机节奏让发帖时间不可预测。
type Scheduler struct {
	runner Runner
	cfg    config.SchedulerConfig
	// sleep 可在测试中替换以绕开真实时钟。
	sleep func(ctx context.Context, d time.Duration) bool
}

// New 创建调度器。
func New(runner Runner, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// Run 启动调度循环，先立刻执行一轮，之后按随机窗口驱动，
// 直到 ctx 被取消才返回。
func (s *Scheduler) Run(ctx context.Context) error {
	logger.L().Info("执行启动轮")
	s.runCycle(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := s.randomDuration(0, time.Duration(s.cfg.MaxActivationDelayMinutes)*time.Minute)
		active := s.randomDuration(
			time.Duration(s.cfg.MinActiveMinutes)*time.Minute,
			time.Duration(s.cfg.MaxActiveMinutes)*time.Minute)

		logger.L().Info("调度下一个活跃窗口",
			"activation_delay", delay.String(),
			"active_duration", active.String())

		if !s.sleep(ctx, delay) {
			return ctx.Err()
		}

		s.runWindow(ctx, active)
	}
}

// runWindow 在一个活跃窗口内按随机间隔执行管道。
func (s *Scheduler) runWindow(ctx context.Context, active time.Duration) {
	deadline := time.Now().Add(active)
	logger.L().Info("进入活跃窗口", "until", deadline.Format(time.TimeOnly))

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		s.runCycle(ctx)

		interval := s.randomDuration(
			time.Duration(s.cfg.MinIntervalSeconds)*time.Second,
			time.Duration(s.cfg.MaxIntervalSeconds)*time.Second)
		if time.Now().Add(interval).After(deadline) {
			break
		}
		logger.L().Info("下一次执行", "in", interval.String())
		if !s.sleep(ctx, interval) {
			return
		}
	}
	logger.L().Info("退出活跃窗口")
}

// runCycle 执行一轮管道并吞掉任何逃逸的 panic。调度循环只记日志，
// 进程保持存活，下一轮照常调度。
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("管道执行 panic，进程继续",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	s.runner.RunCycle(ctx)
}

func (s *Scheduler) randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// sleepCtx 等待指定时长，ctx 取消时提前返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
