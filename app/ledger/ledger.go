package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lysyi3m/news-relay/app/state"
)

const (
	StateKey        = "sent_news"
	DefaultCapacity = 200
)

// Ledger remembers which news ids were already delivered. It keeps at most
// capacity ids in delivery order and forgets the oldest first, so an id that
// churned out can be delivered again.
type Ledger struct {
	backend  state.Backend
	capacity int

	mu    sync.RWMutex
	ids   []string
	index map[string]struct{}
}

func New(backend state.Backend, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		backend:  backend,
		capacity: capacity,
		ids:      []string{},
		index:    make(map[string]struct{}),
	}
}

// Load replaces the in-memory ledger with the persisted one. A missing or
// unreadable document yields an empty ledger.
func (l *Ledger) Load(ctx context.Context) error {
	data, err := l.backend.Read(ctx, StateKey)
	if errors.Is(err, state.ErrNotExist) {
		l.reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		slog.Warn("Ledger state is corrupt, starting empty", "error", err)
		l.reset(nil)
		return nil
	}

	l.reset(ids)
	slog.Info("Ledger loaded", "ids", l.Len(), "capacity", l.capacity)
	return nil
}

func (l *Ledger) reset(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ids = make([]string, 0, len(ids))
	l.index = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, seen := l.index[id]; seen {
			continue
		}
		l.ids = append(l.ids, id)
		l.index[id] = struct{}{}
	}
	l.trim()
}

// trim evicts the oldest ids above capacity. Callers hold the lock.
func (l *Ledger) trim() {
	if overflow := len(l.ids) - l.capacity; overflow > 0 {
		for _, id := range l.ids[:overflow] {
			delete(l.index, id)
		}
		l.ids = slices.Delete(l.ids, 0, overflow)
	}
}

func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.index[id]
	return ok
}

// Record appends id and persists the ledger before returning. Recording an
// id that is already present does nothing.
func (l *Ledger) Record(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[id]; ok {
		return nil
	}
	l.ids = append(l.ids, id)
	l.index[id] = struct{}{}
	l.trim()

	data, err := json.Marshal(l.ids)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := l.backend.Write(ctx, StateKey, data); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.RLock()
	data, err := json.Marshal(l.ids)
	l.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := l.backend.Write(ctx, StateKey, data); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

// Snapshot returns the ids oldest first.
func (l *Ledger) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.ids)
}
