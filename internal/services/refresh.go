package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
	"github.com/scorewire/match-data-service/internal/providers"
)

// ErrRefreshInProgress is returned when a cycle is already running; the
// pipeline is single-flight regardless of trigger source.
var ErrRefreshInProgress = errors.New("refresh cycle already in progress")

// UpstreamFetcher is the slice of the SofaScore client the pipeline uses.
type UpstreamFetcher interface {
	FetchLiveEvents(ctx context.Context) ([]byte, error)
	FetchScheduledEvents(ctx context.Context, date string) ([]byte, error)
	FetchEventIncidents(ctx context.Context, eventID string) ([]byte, error)
}

// RefreshService runs one refresh cycle: fetch live and scheduled events,
// normalize, enrich live matches with incidents, and update the cache. A
// mutex guard serializes cycles so a manual trigger and the timer never
// interleave writes to the same cache key.
type RefreshService struct {
	fetcher    UpstreamFetcher
	normalizer *MatchNormalizer
	cache      *MatchCacheService
	tracker    *FailureTrackerService
	breaker    *IncidentBreakerService
	logger     *logrus.Logger

	running sync.Mutex
}

// NewRefreshService creates a new refresh pipeline.
func NewRefreshService(
	fetcher UpstreamFetcher,
	normalizer *MatchNormalizer,
	cache *MatchCacheService,
	tracker *FailureTrackerService,
	breaker *IncidentBreakerService,
	logger *logrus.Logger,
) *RefreshService {
	return &RefreshService{
		fetcher:    fetcher,
		normalizer: normalizer,
		cache:      cache,
		tracker:    tracker,
		breaker:    breaker,
		logger:     logger,
	}
}

// RunCycle executes one full refresh cycle, or returns
// ErrRefreshInProgress when another cycle holds the guard. A cycle always
// runs to completion; the only cancellation is the executor's own attempt
// and timeout limits.
func (r *RefreshService) RunCycle(ctx context.Context) error {
	if !r.running.TryLock() {
		return ErrRefreshInProgress
	}
	defer r.running.Unlock()

	cycleID := uuid.New().String()
	log := r.logger.WithFields(logrus.Fields{
		"component": "refresh",
		"cycle_id":  cycleID,
	})
	log.Info("Starting refresh cycle")
	start := time.Now()

	liveOK := r.refreshLive(ctx, log)

	today := time.Now().Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	todayOK := r.refreshScheduled(ctx, log, today)
	tomorrowOK := r.refreshScheduled(ctx, log, tomorrow)

	// A cycle succeeds when at least one resource refreshed; total failure
	// is what feeds the failure streak.
	success := liveOK || todayOK || tomorrowOK
	if success {
		r.tracker.RecordSuccess()
	} else {
		r.tracker.RecordFailure()
	}

	log.WithFields(logrus.Fields{
		"duration":     time.Since(start),
		"live_ok":      liveOK,
		"today_ok":     todayOK,
		"tomorrow_ok":  tomorrowOK,
		"success":      success,
	}).Info("Refresh cycle completed")
	return nil
}

// TriggerRefresh starts one cycle asynchronously, subject to the
// single-flight guard. It always reports accepted; a cycle already in
// flight satisfies the request.
func (r *RefreshService) TriggerRefresh() {
	go func() {
		if err := r.RunCycle(context.Background()); errors.Is(err, ErrRefreshInProgress) {
			r.logger.WithField("component", "refresh").Debug("Manual refresh folded into running cycle")
		}
	}()
}

func (r *RefreshService) refreshLive(ctx context.Context, log *logrus.Entry) bool {
	raw, err := r.fetcher.FetchLiveEvents(ctx)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			// No live football right now is a valid empty result.
			r.cache.Put(ResourceLive, nil)
			return true
		}
		log.WithError(err).Error("Live events fetch failed")
		r.cache.MarkStale(ResourceLive)
		return false
	}

	matches := r.normalizer.NormalizeLive(raw)
	for i := range matches {
		r.enrichMatch(ctx, log, &matches[i])
	}
	r.cache.Put(ResourceLive, matches)
	log.WithField("live_matches", len(matches)).Info("Live matches refreshed")
	return true
}

// enrichMatch attaches scorer and timing detail from the incidents
// endpoint. Best effort behind the circuit breaker: a failure leaves the
// match intact without detail.
func (r *RefreshService) enrichMatch(ctx context.Context, log *logrus.Entry, match *models.NormalizedMatch) {
	if r.breaker.Open() {
		return
	}

	eventID := strconv.FormatInt(match.ID, 10)
	res, err := r.breaker.Execute(func() (interface{}, error) {
		raw, ferr := r.fetcher.FetchEventIncidents(ctx, eventID)
		if errors.Is(ferr, providers.ErrNotFound) {
			// No incidents yet; not a fault.
			return nil, nil
		}
		return raw, ferr
	})
	if err != nil {
		log.WithFields(logrus.Fields{
			"event_id": match.ID,
		}).WithError(err).Warn("Could not fetch incidents for match")
		return
	}
	if raw, ok := res.([]byte); ok && raw != nil {
		r.normalizer.EnrichWithIncidents(match, raw)
	}
}

func (r *RefreshService) refreshScheduled(ctx context.Context, log *logrus.Entry, date string) bool {
	key := ScheduledResourceKey(date)

	raw, err := r.fetcher.FetchScheduledEvents(ctx, date)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			r.cache.Put(key, nil)
			return true
		}
		log.WithFields(logrus.Fields{"date": date}).WithError(err).Error("Scheduled events fetch failed")
		r.cache.MarkStale(key)
		return false
	}

	matches := r.normalizer.NormalizeScheduled(raw)
	r.cache.Put(key, matches)
	log.WithFields(logrus.Fields{
		"date":              date,
		"scheduled_matches": len(matches),
	}).Info("Scheduled matches refreshed")
	return true
}
