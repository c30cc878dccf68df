package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const DefaultInterval = time.Hour

// Scheduler runs a dispatch cycle on a fixed interval once the gate opens.
// Cycles and queued tasks share one goroutine, so they never overlap, and
// the next tick is armed only after a cycle has finished.
type Scheduler struct {
	runner    CycleRunner
	gate      *Gate
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	newCycle  func() TaskInterface
	retryBase time.Duration
}

func NewScheduler(runner CycleRunner, gate *Gate, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := &Scheduler{
		runner:    runner,
		gate:      gate,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 100),
		retryBase: time.Second,
	}
	s.newCycle = func() TaskInterface { return NewDispatchCycleTask(s.runner) }
	return s
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.gate.Wait(s.ctx); err != nil {
			return
		}
		slog.Info("Scheduler started", "interval", s.interval.String())

		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
				s.executeTask(s.newCycle())
				timer.Reset(s.interval)
			case task := <-s.taskQueue:
				s.executeTask(task)
			}
		}
	}()
}

// Stop cancels the running task and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx := s.ctx
	if timeout := task.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	if s.ctx.Err() != nil {
		slog.Info("Task interrupted by shutdown", "type", string(task.GetType()), "id", task.GetID())
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryBase * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
