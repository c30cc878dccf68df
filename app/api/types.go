package api

import (
	"context"
	"time"

	"github.com/lysyi3m/news-relay/app/feed"
	"github.com/lysyi3m/news-relay/app/tasks"
	"github.com/lysyi3m/news-relay/app/tenant"
)

type CommandService interface {
	SetChannel(ctx context.Context, tenantID, destination string) (tenant.Config, error)
	SetCategoryEnabled(ctx context.Context, tenantID, category string, enabled bool) (tenant.Config, error)
	AddMentionTarget(ctx context.Context, tenantID, category, target string) (tenant.Config, error)
	RemoveMentionTarget(ctx context.Context, tenantID, category, target string) (tenant.Config, error)
	ClearMentionTargets(ctx context.Context, tenantID string) (tenant.Config, error)
	GetConfig(tenantID string) (tenant.Config, error)
}

var _ CommandService = (*tenant.Service)(nil)

type SourceRegistry interface {
	Categories() []string
	GetSource(category string) (*feed.Source, error)
	Color(category string) int
}

type Counter interface {
	Len() int
}

type Handler struct {
	service   CommandService
	registry  SourceRegistry
	fetcher   tasks.Fetcher
	scheduler tasks.TaskSchedulerInterface
	deliverer tasks.TestDeliverer
	tenants   Counter
	ledger    Counter
	gate      *tasks.Gate
}

type setChannelRequest struct {
	Destination string `json:"destination" binding:"required"`
}

type setCategoryRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type addTargetRequest struct {
	Target string `json:"target" binding:"required"`
}

type TenantResponse struct {
	ID                string              `json:"id"`
	Destination       string              `json:"destination"`
	EnabledCategories map[string]bool     `json:"enabled_categories"`
	MentionTargets    map[string][]string `json:"mention_targets"`
}

func newTenantResponse(id string, cfg tenant.Config) TenantResponse {
	return TenantResponse{
		ID:                id,
		Destination:       cfg.Destination,
		EnabledCategories: cfg.EnabledCategories,
		MentionTargets:    cfg.MentionTargets,
	}
}

type CategoryResponse struct {
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	Endpoints []string `json:"endpoints"`
	Limit     int      `json:"limit"`
	Filters   int      `json:"filters"`
}

type NewsItemResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
}
