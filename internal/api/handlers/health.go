package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
	"github.com/scorewire/match-data-service/internal/proxy"
	"github.com/scorewire/match-data-service/internal/services"
)

// HealthHandler handles health, status and metrics endpoints.
type HealthHandler struct {
	cache   *services.MatchCacheService
	tracker *services.FailureTrackerService
	pool    *proxy.Pool
	breaker *services.IncidentBreakerService
	logger  *logrus.Logger
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(
	cache *services.MatchCacheService,
	tracker *services.FailureTrackerService,
	pool *proxy.Pool,
	breaker *services.IncidentBreakerService,
	logger *logrus.Logger,
) *HealthHandler {
	return &HealthHandler{
		cache:   cache,
		tracker: tracker,
		pool:    pool,
		breaker: breaker,
		logger:  logger,
		started: time.Now(),
	}
}

// GetHealth returns the basic health status. The service reports degraded
// once the pipeline has a failure streak or the live entry has gone stale.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := models.HealthStatus{
		Status:    "ok",
		Service:   "match-data-service",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	summary := h.tracker.Summary()
	response.Checks["pipeline"] = string(summary.State)
	if summary.State != models.StateNormal {
		response.Status = "degraded"
	}

	if live, found := h.cache.Get(services.ResourceLive); found {
		response.Checks["live_data"] = live.Status
		if live.Status == models.EntryStatusStale {
			response.Status = "degraded"
		}
	} else {
		response.Checks["live_data"] = "absent"
	}

	statusCode := http.StatusOK
	if response.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// GetStatus returns the full pipeline status for operators.
func (h *HealthHandler) GetStatus(c *gin.Context) {
	live, _ := h.cache.Get(services.ResourceLive)

	scheduledCount := 0
	for _, key := range h.cache.Keys() {
		if key == services.ResourceLive {
			continue
		}
		if entry, found := h.cache.Get(key); found {
			scheduledCount += entry.Count()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"health":  h.tracker.Summary(),
		"proxies": h.pool.Status(),
		"incidentsBreaker": h.breaker.State().String(),
		"statistics": gin.H{
			"liveMatches":      live.Count(),
			"scheduledMatches": scheduledCount,
			"totalMatches":     live.Count() + scheduledCount,
		},
		"uptime": time.Since(h.started).String(),
	})
}

// GetMetrics returns flat counters for scraping.
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	summary := h.tracker.Summary()
	live, _ := h.cache.Get(services.ResourceLive)
	pool := h.pool.Status()

	scheduledCount := 0
	for _, key := range h.cache.Keys() {
		if key == services.ResourceLive {
			continue
		}
		if entry, found := h.cache.Get(key); found {
			scheduledCount += entry.Count()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"live_matches_total":      live.Count(),
		"scheduled_matches_total": scheduledCount,
		"consecutive_failures":    summary.ConsecutiveFailures,
		"total_failures":          summary.TotalFailures,
		"proxies_available":       pool.Available,
		"proxies_failed":          pool.Failed,
		"uptime_seconds":          int(time.Since(h.started).Seconds()),
	})
}
