package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-relay/app/tenant"
)

type TestDeliverer interface {
	TestDelivery(ctx context.Context, tenantID, category string) (int, error)
}

type TestDeliveryTask struct {
	Task
	TenantID  string
	Category  string
	deliverer TestDeliverer
}

func NewTestDeliveryTask(deliverer TestDeliverer, tenantID, category string) *TestDeliveryTask {
	task := &TestDeliveryTask{
		Task:      NewTask(TaskTypeTestDelivery, tenantID),
		TenantID:  tenantID,
		Category:  category,
		deliverer: deliverer,
	}
	// a rerun would repost categories that already went out
	task.MaxRetries = 0
	return task
}

func (t *TestDeliveryTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	delivered, err := t.deliverer.TestDelivery(ctx, t.TenantID, t.Category)
	if errors.Is(err, tenant.ErrNotConfigured) || errors.Is(err, tenant.ErrUnknownCategory) {
		// nothing a retry can fix
		slog.Warn("Task skipped", "type", "TestDelivery", "tenant", t.TenantID, "category", t.Category, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("test delivery failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "TestDelivery",
		"tenant", t.TenantID,
		"category", t.Category,
		"duration", t.GetDuration(),
		"delivered", delivered)

	return nil
}
