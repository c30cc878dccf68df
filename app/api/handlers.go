package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-relay/app/tasks"
	"github.com/lysyi3m/news-relay/app/tenant"
)

func NewHandler(service CommandService, registry SourceRegistry, fetcher tasks.Fetcher,
	scheduler tasks.TaskSchedulerInterface, deliverer tasks.TestDeliverer,
	tenants Counter, ledger Counter, gate *tasks.Gate) *Handler {
	return &Handler{
		service:   service,
		registry:  registry,
		fetcher:   fetcher,
		scheduler: scheduler,
		deliverer: deliverer,
		tenants:   tenants,
		ledger:    ledger,
		gate:      gate,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":  time.Now().In(time.Local).Format(time.RFC3339),
		"ready":      h.gate.IsOpen(),
		"categories": len(h.registry.Categories()),
		"tenants":    h.tenants.Len(),
		"ledger_ids": h.ledger.Len(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories := make([]CategoryResponse, 0)

	for _, name := range h.registry.Categories() {
		source, err := h.registry.GetSource(name)
		if err != nil {
			continue
		}
		categories = append(categories, CategoryResponse{
			Name:      name,
			Color:     fmt.Sprintf("#%06x", h.registry.Color(name)),
			Endpoints: source.Endpoints,
			Limit:     source.Settings.Limit,
			Filters:   len(source.Filters),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *Handler) GetLatest(c *gin.Context) {
	category := strings.ToLower(c.Param("category"))
	if _, err := h.registry.GetSource(category); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown category"})
		return
	}

	items := h.fetcher.FetchN(c.Request.Context(), category, 1)
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No news found"})
		return
	}

	item := items[0]
	c.JSON(http.StatusOK, NewsItemResponse{
		ID:          item.ID,
		Title:       item.Title,
		Link:        item.Link,
		Summary:     item.Summary,
		ImageURL:    item.ImageURL,
		PublishedAt: item.PublishedAt,
		Category:    item.Category,
	})
}

func (h *Handler) GetTenant(c *gin.Context) {
	id := c.Param("id")

	cfg, err := h.service.GetConfig(id)
	if err != nil {
		writeError(c, "get_tenant", id, err)
		return
	}

	c.JSON(http.StatusOK, newTenantResponse(id, cfg))
}

func (h *Handler) SetChannel(c *gin.Context) {
	id := c.Param("id")

	var req setChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg, err := h.service.SetChannel(c.Request.Context(), id, req.Destination)
	if err != nil {
		writeError(c, "set_channel", id, err)
		return
	}

	slog.Info("Channel configured", "tenant", id, "destination", cfg.Destination)
	c.JSON(http.StatusOK, newTenantResponse(id, cfg))
}

func (h *Handler) SetCategory(c *gin.Context) {
	id := c.Param("id")

	var req setCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg, err := h.service.SetCategoryEnabled(c.Request.Context(), id, c.Param("category"), *req.Enabled)
	if err != nil {
		writeError(c, "set_category", id, err)
		return
	}

	c.JSON(http.StatusOK, newTenantResponse(id, cfg))
}

func (h *Handler) AddRole(c *gin.Context) {
	id := c.Param("id")

	var req addTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg, err := h.service.AddMentionTarget(c.Request.Context(), id, c.Param("category"), req.Target)
	if err != nil {
		writeError(c, "add_role", id, err)
		return
	}

	c.JSON(http.StatusCreated, newTenantResponse(id, cfg))
}

func (h *Handler) RemoveRole(c *gin.Context) {
	id := c.Param("id")

	cfg, err := h.service.RemoveMentionTarget(c.Request.Context(), id, c.Param("category"), c.Param("target"))
	if err != nil {
		writeError(c, "remove_role", id, err)
		return
	}

	c.JSON(http.StatusOK, newTenantResponse(id, cfg))
}

func (h *Handler) ClearRoles(c *gin.Context) {
	id := c.Param("id")

	cfg, err := h.service.ClearMentionTargets(c.Request.Context(), id)
	if err != nil {
		writeError(c, "clear_roles", id, err)
		return
	}

	c.JSON(http.StatusOK, newTenantResponse(id, cfg))
}

func (h *Handler) TriggerTest(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.service.GetConfig(id); err != nil {
		writeError(c, "trigger_test", id, err)
		return
	}

	category := strings.ToLower(c.Query("category"))
	if category != "" {
		if _, err := h.registry.GetSource(category); err != nil {
			writeError(c, "trigger_test", id, tenant.ErrUnknownCategory)
			return
		}
	}

	task := tasks.NewTestDeliveryTask(h.deliverer, id, category)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing test delivery", "tenant", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue test delivery",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Test delivery enqueued",
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

func writeError(c *gin.Context, operation, id string, err error) {
	status := http.StatusInternalServerError
	message := "Internal error"

	switch {
	case errors.Is(err, tenant.ErrNotConfigured):
		status, message = http.StatusNotFound, "Tenant not configured"
	case errors.Is(err, tenant.ErrUnknownCategory):
		status, message = http.StatusNotFound, "Unknown category"
	case errors.Is(err, tenant.ErrTargetNotFound):
		status, message = http.StatusNotFound, "Mention target not configured"
	case errors.Is(err, tenant.ErrAlreadyExists):
		status, message = http.StatusConflict, "Mention target already configured"
	case errors.Is(err, tenant.ErrInvalidDestination), errors.Is(err, tenant.ErrInvalidTarget):
		status, message = http.StatusBadRequest, err.Error()
	}

	if status == http.StatusInternalServerError {
		slog.Error("Command failed", "operation", operation, "tenant", id, "error", err)
	}

	c.JSON(status, gin.H{"error": message})
}
