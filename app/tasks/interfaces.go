package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/news-relay/app/feed"
	"github.com/lysyi3m/news-relay/app/tenant"
)

// TaskSchedulerInterface is what the rest of the application needs from
// the scheduler: lifecycle control and ad-hoc task submission.
//
//	scheduler := NewScheduler(dispatcher, gate, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewTestDeliveryTask(dispatcher, tenantID, ""))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type Fetcher interface {
	Fetch(ctx context.Context, category string) []feed.NewsItem
	FetchN(ctx context.Context, category string, limit int) []feed.NewsItem
}

type Ledger interface {
	Contains(id string) bool
	Record(ctx context.Context, id string) error
	Len() int
}

type TenantStore interface {
	Snapshot() []tenant.Entry
	Get(id string) (tenant.Config, bool)
	Delete(ctx context.Context, id string) error
}

type Categories interface {
	Categories() []string
	Color(category string) int
}

type Recorder interface {
	ObserveDelivery(category string, ok bool)
	ObserveResolution(outcome string)
	ObserveCycle(duration time.Duration)
	SetLedgerSize(n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDelivery(string, bool) {}
func (noopRecorder) ObserveResolution(string)     {}
func (noopRecorder) ObserveCycle(time.Duration)   {}
func (noopRecorder) SetLedgerSize(int)            {}
