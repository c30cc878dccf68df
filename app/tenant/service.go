package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrNotConfigured      = errors.New("tenant is not configured")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrAlreadyExists      = errors.New("mention target already configured")
	ErrTargetNotFound     = errors.New("mention target not configured")
	ErrInvalidDestination = errors.New("destination is required")
	ErrInvalidTarget      = errors.New("mention target is required")
)

// Categories is the set of categories commands may refer to.
type Categories interface {
	Has(category string) bool
	Categories() []string
}

// Service implements the administrative commands on top of a Store.
type Service struct {
	store      *Store
	categories Categories
}

func NewService(store *Store, categories Categories) *Service {
	return &Service{store: store, categories: categories}
}

// SetChannel points the tenant at destination and enables every category.
func (s *Service) SetChannel(ctx context.Context, tenantID, destination string) (Config, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return Config{}, ErrInvalidDestination
	}

	return s.store.Upsert(ctx, tenantID, func(cfg *Config) error {
		cfg.Destination = destination
		for _, category := range s.categories.Categories() {
			cfg.EnabledCategories[category] = true
		}
		return nil
	})
}

func (s *Service) SetCategoryEnabled(ctx context.Context, tenantID, category string, enabled bool) (Config, error) {
	category, err := s.category(category)
	if err != nil {
		return Config{}, err
	}

	return s.store.Upsert(ctx, tenantID, func(cfg *Config) error {
		cfg.EnabledCategories[category] = enabled
		return nil
	})
}

func (s *Service) AddMentionTarget(ctx context.Context, tenantID, category, target string) (Config, error) {
	category, err := s.category(category)
	if err != nil {
		return Config{}, err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Config{}, ErrInvalidTarget
	}

	return s.store.Upsert(ctx, tenantID, func(cfg *Config) error {
		if lo.Contains(cfg.MentionTargets[category], target) {
			return ErrAlreadyExists
		}
		cfg.MentionTargets[category] = append(cfg.MentionTargets[category], target)
		return nil
	})
}

func (s *Service) RemoveMentionTarget(ctx context.Context, tenantID, category, target string) (Config, error) {
	category, err := s.category(category)
	if err != nil {
		return Config{}, err
	}

	current, ok := s.store.Get(tenantID)
	if !ok || !lo.Contains(current.MentionTargets[category], target) {
		return Config{}, ErrTargetNotFound
	}

	return s.store.Upsert(ctx, tenantID, func(cfg *Config) error {
		if !lo.Contains(cfg.MentionTargets[category], target) {
			return ErrTargetNotFound
		}
		cfg.MentionTargets[category] = lo.Without(cfg.MentionTargets[category], target)
		return nil
	})
}

func (s *Service) ClearMentionTargets(ctx context.Context, tenantID string) (Config, error) {
	if _, ok := s.store.Get(tenantID); !ok {
		return Config{}, ErrNotConfigured
	}

	return s.store.Upsert(ctx, tenantID, func(cfg *Config) error {
		cfg.MentionTargets = make(map[string][]string)
		return nil
	})
}

func (s *Service) GetConfig(tenantID string) (Config, error) {
	cfg, ok := s.store.Get(tenantID)
	if !ok {
		return Config{}, ErrNotConfigured
	}
	return cfg, nil
}

func (s *Service) category(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if !s.categories.Has(category) {
		return "", ErrUnknownCategory
	}
	return category, nil
}
