package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lysyi3m/news-relay/app/notifier"
	"github.com/lysyi3m/news-relay/app/tenant"
)

const DefaultDeliveryDelay = 5 * time.Second

var ErrLedgerPersistence = errors.New("ledger persistence failed")

type CycleStats struct {
	Tenants   int
	Skipped   int
	Removed   int
	Delivered int
	Failed    int
}

// Dispatcher fans fetched news out to every configured tenant, using the
// ledger so that each item is delivered once.
type Dispatcher struct {
	fetcher    Fetcher
	ledger     Ledger
	tenants    TenantStore
	categories Categories
	notifier   notifier.Notifier
	recorder   Recorder
	delay      time.Duration
	pause      func(ctx context.Context, d time.Duration) error
	location   *time.Location
}

type DispatcherOption func(*Dispatcher)

func WithDeliveryDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.delay = delay }
}

// WithPause replaces the wait between deliveries.
func WithPause(pause func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.pause = pause }
}

func WithRecorder(recorder Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

func WithLocation(location *time.Location) DispatcherOption {
	return func(d *Dispatcher) {
		if location != nil {
			d.location = location
		}
	}
}

func NewDispatcher(fetcher Fetcher, ledger Ledger, tenants TenantStore, categories Categories, n notifier.Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		fetcher:    fetcher,
		ledger:     ledger,
		tenants:    tenants,
		categories: categories,
		notifier:   n,
		recorder:   noopRecorder{},
		delay:      DefaultDeliveryDelay,
		pause:      sleepContext,
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunCycle delivers every unseen item to every tenant once. Failures are
// contained per tenant; only a ledger persistence failure or ctx ending
// stops the cycle early.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	defer func() { d.recorder.ObserveCycle(time.Since(start)) }()

	var stats CycleStats
	for _, entry := range d.tenants.Snapshot() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Tenants++

		if entry.Config.Destination == "" {
			slog.Debug("Tenant has no destination, skipping", "tenant", entry.ID)
			stats.Skipped++
			continue
		}

		dest, resolution, err := d.notifier.ResolveDestination(ctx, entry.Config.Destination)
		d.recorder.ObserveResolution(resolution.String())

		switch resolution {
		case notifier.Resolved:
		case notifier.NotFound:
			slog.Warn("Destination no longer exists, removing tenant", "tenant", entry.ID, "destination", entry.Config.Destination, "error", err)
			if err := d.tenants.Delete(ctx, entry.ID); err != nil {
				slog.Error("Failed to remove tenant", "tenant", entry.ID, "error", err)
			} else {
				stats.Removed++
			}
			continue
		case notifier.Forbidden:
			slog.Warn("Destination not accessible, skipping tenant", "tenant", entry.ID, "destination", entry.Config.Destination, "error", err)
			stats.Skipped++
			continue
		case notifier.Transient:
			slog.Warn("Destination lookup failed, skipping tenant", "tenant", entry.ID, "destination", entry.Config.Destination, "error", err)
			stats.Skipped++
			continue
		default:
			slog.Error("Unexpected destination resolution", "tenant", entry.ID, "resolution", resolution.String())
			stats.Skipped++
			continue
		}

		delivered, err := d.dispatchTenant(ctx, entry, dest)
		stats.Delivered += delivered
		switch {
		case err == nil:
		case errors.Is(err, ErrLedgerPersistence):
			slog.Error("Aborting dispatch cycle", "tenant", entry.ID, "error", err)
			return stats, err
		case ctx.Err() != nil:
			return stats, ctx.Err()
		default:
			slog.Warn("Delivery failed, skipping tenant for this cycle", "tenant", entry.ID, "error", err)
			stats.Failed++
		}
	}

	return stats, nil
}

func (d *Dispatcher) dispatchTenant(ctx context.Context, entry tenant.Entry, dest notifier.Destination) (int, error) {
	delivered := 0

	for _, category := range d.categories.Categories() {
		if !entry.Config.Enabled(category) {
			continue
		}

		items := d.fetcher.Fetch(ctx, category)

		// oldest first
		for _, item := range slices.Backward(items) {
			if d.ledger.Contains(item.ID) {
				continue
			}

			msg := notifier.BuildMessage(item, d.categories.Color(category), entry.Config.Targets(category), d.location)
			if err := d.notifier.Deliver(ctx, dest, msg); err != nil {
				d.recorder.ObserveDelivery(category, false)
				return delivered, err
			}
			d.recorder.ObserveDelivery(category, true)

			if err := d.ledger.Record(ctx, item.ID); err != nil {
				return delivered, fmt.Errorf("%w: %w", ErrLedgerPersistence, err)
			}
			d.recorder.SetLedgerSize(d.ledger.Len())
			delivered++

			slog.Info("News delivered", "tenant", entry.ID, "category", category, "id", item.ID, "title", item.Title)

			if err := d.pause(ctx, d.delay); err != nil {
				return delivered, err
			}
		}
	}

	return delivered, nil
}

// TestDelivery sends the newest item of category, or of every enabled
// category when category is empty, to the tenant's destination. The ledger
// is neither consulted nor updated.
func (d *Dispatcher) TestDelivery(ctx context.Context, tenantID, category string) (int, error) {
	cfg, ok := d.tenants.Get(tenantID)
	if !ok {
		return 0, tenant.ErrNotConfigured
	}
	if cfg.Destination == "" {
		return 0, fmt.Errorf("%w: no destination set", tenant.ErrNotConfigured)
	}

	categories := d.categories.Categories()
	if category != "" {
		if !slices.Contains(categories, category) {
			return 0, tenant.ErrUnknownCategory
		}
		categories = []string{category}
	} else {
		categories = slices.DeleteFunc(categories, func(c string) bool { return !cfg.Enabled(c) })
	}

	dest, resolution, err := d.notifier.ResolveDestination(ctx, cfg.Destination)
	if resolution != notifier.Resolved {
		return 0, fmt.Errorf("destination %s is %s: %w", cfg.Destination, resolution, err)
	}

	delivered := 0
	for _, c := range categories {
		items := d.fetcher.FetchN(ctx, c, 1)
		if len(items) == 0 {
			slog.Info("No news available for test delivery", "tenant", tenantID, "category", c)
			continue
		}

		msg := notifier.BuildMessage(items[0], d.categories.Color(c), cfg.Targets(c), d.location)
		if err := d.notifier.Deliver(ctx, dest, msg); err != nil {
			d.recorder.ObserveDelivery(c, false)
			return delivered, err
		}
		d.recorder.ObserveDelivery(c, true)
		delivered++
	}

	return delivered, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
