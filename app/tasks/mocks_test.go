package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/news-relay/app/feed"
	"github.com/lysyi3m/news-relay/app/notifier"
)

// MockFetcher returns canned items per category.
type MockFetcher struct {
	mu      sync.Mutex
	items   map[string][]feed.NewsItem
	fetched []string
}

func NewMockFetcher(items map[string][]feed.NewsItem) *MockFetcher {
	return &MockFetcher{items: items}
}

func (m *MockFetcher) Fetch(ctx context.Context, category string) []feed.NewsItem {
	return m.FetchN(ctx, category, 0)
}

func (m *MockFetcher) FetchN(ctx context.Context, category string, limit int) []feed.NewsItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetched = append(m.fetched, category)
	items := append([]feed.NewsItem(nil), m.items[category]...)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// MockLedger is an unbounded in-memory ledger.
type MockLedger struct {
	mu        sync.Mutex
	ids       []string
	recordErr error
}

func (m *MockLedger) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (m *MockLedger) Record(ctx context.Context, id string) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	if m.Contains(id) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

func (m *MockLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

type delivery struct {
	destination string
	message     notifier.Message
}

// MockNotifier resolves destinations from a table and records deliveries.
type MockNotifier struct {
	mu          sync.Mutex
	resolutions map[string]notifier.Resolution
	failOn      map[string]bool
	resolved    []string
	deliveries  []delivery
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		resolutions: make(map[string]notifier.Resolution),
		failOn:      make(map[string]bool),
	}
}

func (m *MockNotifier) ResolveDestination(ctx context.Context, handle string) (notifier.Destination, notifier.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolved = append(m.resolved, handle)
	resolution, ok := m.resolutions[handle]
	if !ok {
		resolution = notifier.Resolved
	}
	if resolution != notifier.Resolved {
		return notifier.Destination{Handle: handle}, resolution, errors.New(resolution.String())
	}
	return notifier.Destination{Handle: handle}, notifier.Resolved, nil
}

func (m *MockNotifier) Deliver(ctx context.Context, dest notifier.Destination, msg notifier.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn[dest.Handle] {
		return errors.New("connection reset")
	}
	m.deliveries = append(m.deliveries, delivery{destination: dest.Handle, message: msg})
	return nil
}

func (m *MockNotifier) Deliveries() []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery(nil), m.deliveries...)
}

// PauseRecorder records requested pauses without sleeping.
type PauseRecorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *PauseRecorder) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = append(p.pauses, d)
	return ctx.Err()
}

func (p *PauseRecorder) Pauses() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.pauses...)
}

// MockRunner counts cycles and can block until released.
type MockRunner struct {
	mu      sync.Mutex
	cycles  int
	running int
	overlap bool
	block   chan struct{}
	ran     chan struct{}
}

func NewMockRunner() *MockRunner {
	return &MockRunner{ran: make(chan struct{}, 100)}
}

func (m *MockRunner) RunCycle(ctx context.Context) (CycleStats, error) {
	m.mu.Lock()
	m.cycles++
	m.running++
	if m.running > 1 {
		m.overlap = true
	}
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.running--
	m.mu.Unlock()

	select {
	case m.ran <- struct{}{}:
	default:
	}
	return CycleStats{}, nil
}

func (m *MockRunner) Cycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}
