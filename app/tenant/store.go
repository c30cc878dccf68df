package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/lysyi3m/news-relay/app/state"
)

const StateKey = "server_config"

type Entry struct {
	ID     string
	Config Config
}

// Store holds every tenant's Config and writes the whole set back to the
// backend after each mutation.
type Store struct {
	backend state.Backend

	mu      sync.Mutex
	configs map[string]Config
	order   []string
}

func NewStore(backend state.Backend) *Store {
	return &Store{
		backend: backend,
		configs: make(map[string]Config),
	}
}

// Load replaces the in-memory configs with the persisted ones. A missing or
// unreadable document yields an empty store.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Read(ctx, StateKey)
	if errors.Is(err, state.ErrNotExist) {
		s.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read tenant configs: %w", err)
	}

	var configs map[string]Config
	if err := json.Unmarshal(data, &configs); err != nil {
		slog.Warn("Tenant config state is corrupt, starting empty", "error", err)
		s.replace(nil)
		return nil
	}

	s.replace(configs)
	slog.Info("Tenant configs loaded", "tenants", len(configs))
	return nil
}

func (s *Store) replace(configs map[string]Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs = make(map[string]Config, len(configs))
	s.order = slices.Sorted(maps.Keys(configs))
	for id, cfg := range configs {
		s.configs[id] = cfg.Clone()
	}
}

func (s *Store) Get(id string) (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[id]
	if !ok {
		return Config{}, false
	}
	return cfg.Clone(), true
}

// Upsert applies mutate to the tenant's config, creating an empty one first
// if needed, and persists the result. If mutate fails nothing changes; if
// persisting fails the previous config is restored.
func (s *Store) Upsert(ctx context.Context, id string, mutate func(*Config) error) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.configs[id]

	next := NewConfig()
	if existed {
		next = previous.Clone()
	}
	if err := mutate(&next); err != nil {
		return Config{}, err
	}

	s.configs[id] = next
	if !existed {
		s.order = append(s.order, id)
	}

	if err := s.persistLocked(ctx); err != nil {
		if existed {
			s.configs[id] = previous
		} else {
			s.removeLocked(id)
		}
		return Config{}, err
	}

	return next.Clone(), nil
}

// Delete drops a tenant and persists. Deleting an unknown tenant is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.configs[id]
	if !ok {
		return nil
	}
	index := slices.Index(s.order, id)
	s.removeLocked(id)

	if err := s.persistLocked(ctx); err != nil {
		s.configs[id] = previous
		s.order = slices.Insert(s.order, index, id)
		return err
	}
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.configs, id)
	s.order = slices.DeleteFunc(s.order, func(other string) bool { return other == id })
}

// Snapshot returns copies of all configs in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, Entry{ID: id, Config: s.configs[id].Clone()})
	}
	return entries
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.configs)
}

func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.MarshalIndent(s.configs, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode tenant configs: %w", err)
	}
	if err := s.backend.Write(ctx, StateKey, data); err != nil {
		return fmt.Errorf("failed to persist tenant configs: %w", err)
	}
	return nil
}
