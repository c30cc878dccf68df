package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleStats, error)
}

type DispatchCycleTask struct {
	Task
	runner CycleRunner
}

// NewDispatchCycleTask is never retried; the next tick is the retry.
func NewDispatchCycleTask(runner CycleRunner) *DispatchCycleTask {
	task := NewTask(TaskTypeDispatchCycle, "*")
	task.MaxRetries = 0
	task.Timeout = 0

	return &DispatchCycleTask{
		Task:   task,
		runner: runner,
	}
}

func (t *DispatchCycleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.runner.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("dispatch cycle aborted after %d deliveries: %w", stats.Delivered, err)
	}

	slog.Info("Task completed",
		"type", "DispatchCycle",
		"duration", t.GetDuration(),
		"tenants", stats.Tenants,
		"skipped", stats.Skipped,
		"removed", stats.Removed,
		"failed", stats.Failed,
		"delivered", stats.Delivered)

	return nil
}
