package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
	"github.com/scorewire/match-data-service/internal/providers"
	"github.com/scorewire/match-data-service/internal/services"
	"github.com/scorewire/match-data-service/internal/utils"
)

// MatchResponse is the payload shape served for cached match resources.
type MatchResponse struct {
	Matches    []models.NormalizedMatch `json:"matches"`
	LastUpdate *time.Time               `json:"lastUpdate"`
	Count      int                      `json:"count"`
	Status     string                   `json:"status"`
}

// MatchHandler serves cached match data and the manual refresh trigger.
// Reads never touch the network; they only snapshot the cache.
type MatchHandler struct {
	cache     *services.MatchCacheService
	refresher *services.RefreshService
	client    *providers.SofaScoreClient
	logger    *logrus.Logger
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(
	cache *services.MatchCacheService,
	refresher *services.RefreshService,
	client *providers.SofaScoreClient,
	logger *logrus.Logger,
) *MatchHandler {
	return &MatchHandler{
		cache:     cache,
		refresher: refresher,
		client:    client,
		logger:    logger,
	}
}

func entryToResponse(entry models.CacheEntry, found bool) MatchResponse {
	resp := MatchResponse{
		Matches: entry.Matches,
		Count:   len(entry.Matches),
		Status:  entry.Status,
	}
	if found && !entry.LastUpdate.IsZero() {
		t := entry.LastUpdate
		resp.LastUpdate = &t
	}
	if resp.Status == "" {
		resp.Status = models.EntryStatusStale
	}
	return resp
}

// GetLiveScores returns the cached live matches.
func (h *MatchHandler) GetLiveScores(c *gin.Context) {
	entry, found := h.cache.Get(services.ResourceLive)
	c.JSON(http.StatusOK, entryToResponse(entry, found))
}

// GetScheduled returns scheduled matches for today and tomorrow, merged.
func (h *MatchHandler) GetScheduled(c *gin.Context) {
	now := time.Now()
	today, foundToday := h.cache.Get(services.ScheduledResourceKey(now.Format("2006-01-02")))
	tomorrow, foundTomorrow := h.cache.Get(services.ScheduledResourceKey(now.AddDate(0, 0, 1).Format("2006-01-02")))

	merged := make([]models.NormalizedMatch, 0, len(today.Matches)+len(tomorrow.Matches))
	merged = append(merged, today.Matches...)
	merged = append(merged, tomorrow.Matches...)

	resp := MatchResponse{
		Matches: merged,
		Count:   len(merged),
		Status:  models.EntryStatusSuccess,
	}
	// The merged payload is only as fresh as its oldest half.
	if today.Status == models.EntryStatusStale || tomorrow.Status == models.EntryStatusStale {
		resp.Status = models.EntryStatusStale
	}
	if !foundToday && !foundTomorrow {
		resp.Status = models.EntryStatusStale
	}
	var last time.Time
	if foundToday {
		last = today.LastUpdate
	}
	if foundTomorrow && (last.IsZero() || tomorrow.LastUpdate.Before(last)) {
		last = tomorrow.LastUpdate
	}
	if !last.IsZero() {
		resp.LastUpdate = &last
	}

	c.JSON(http.StatusOK, resp)
}

// GetScheduledByDate returns the cached scheduled matches for one date.
func (h *MatchHandler) GetScheduledByDate(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		utils.SendError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	entry, found := h.cache.Get(services.ScheduledResourceKey(date))
	c.JSON(http.StatusOK, entryToResponse(entry, found))
}

// RefreshData triggers one refresh cycle, folded into any cycle already in
// flight.
func (h *MatchHandler) RefreshData(c *gin.Context) {
	h.refresher.TriggerRefresh()
	utils.SendAccepted(c, gin.H{"timestamp": time.Now()}, "Data refresh initiated")
}

// GetMatchDetails proxies a single match details fetch upstream.
func (h *MatchHandler) GetMatchDetails(c *gin.Context) {
	h.passThrough(c, func() ([]byte, error) {
		return h.client.FetchEventDetails(c.Request.Context(), c.Param("id"))
	})
}

// GetMatchIncidents proxies a single match incidents fetch upstream.
func (h *MatchHandler) GetMatchIncidents(c *gin.Context) {
	h.passThrough(c, func() ([]byte, error) {
		return h.client.FetchEventIncidents(c.Request.Context(), c.Param("id"))
	})
}

func (h *MatchHandler) passThrough(c *gin.Context, fetch func() ([]byte, error)) {
	raw, err := fetch()
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			utils.SendNotFound(c, "match not found")
			return
		}
		h.logger.WithField("component", "match_handler").WithError(err).Error("Upstream pass-through fetch failed")
		utils.SendBadGateway(c, "upstream fetch failed")
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
