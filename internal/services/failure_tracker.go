package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
)

// PoolResetter is the slice of the proxy pool the tracker drives.
type PoolResetter interface {
	Reset()
}

// FailureThresholds holds the consecutive-failure counts at which the
// pipeline degrades, goes critical, and finally force-resets.
type FailureThresholds struct {
	Degraded   int
	Critical   int
	ForceReset int
}

// FailureTrackerService counts refresh-cycle outcomes and drives the
// recovery machinery: the proxy pool reset on a degraded streak, the
// skip-next-cycle signal when critical, and the force reset that unsticks a
// permanently failing pipeline. Mutated only by the refresh pipeline's
// completion handler; read by the scheduler and the health endpoints.
type FailureTrackerService struct {
	mu          sync.Mutex
	consecutive int
	total       int
	lastSuccess time.Time
	skipNext    bool

	thresholds FailureThresholds
	pool       PoolResetter
	logger     *logrus.Logger
}

// NewFailureTrackerService creates a tracker in the Normal state.
func NewFailureTrackerService(thresholds FailureThresholds, pool PoolResetter, logger *logrus.Logger) *FailureTrackerService {
	return &FailureTrackerService{
		thresholds: thresholds,
		pool:       pool,
		logger:     logger,
	}
}

// RecordSuccess resets the failure streak and returns the pipeline to
// Normal regardless of how long the streak was.
func (ft *FailureTrackerService) RecordSuccess() {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.consecutive > 0 {
		ft.logger.WithFields(logrus.Fields{
			"component":     "failure_tracker",
			"ended_streak":  ft.consecutive,
			"total_failures": ft.total,
		}).Info("Refresh recovered, failure streak reset")
	}
	ft.consecutive = 0
	ft.skipNext = false
	ft.lastSuccess = time.Now()
}

// RecordFailure bumps the counters and applies the threshold actions:
// proxy pool reset when the streak reaches the degraded threshold, a
// skip-next-cycle signal at and beyond the critical threshold, and a forced
// counter+pool reset once the streak reaches the force-reset threshold.
func (ft *FailureTrackerService) RecordFailure() {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.consecutive++
	ft.total++

	log := ft.logger.WithFields(logrus.Fields{
		"component":            "failure_tracker",
		"consecutive_failures": ft.consecutive,
		"total_failures":       ft.total,
	})

	switch {
	case ft.consecutive >= ft.thresholds.ForceReset:
		// Escape hatch from permanent lockout: clear everything and let
		// the next cycle try from a clean slate.
		log.Error("Extended stall, force-resetting failure counter and proxy pool")
		ft.consecutive = 0
		ft.skipNext = false
		ft.pool.Reset()
	case ft.consecutive >= ft.thresholds.Critical:
		log.Error("Pipeline critical, next refresh cycle will be skipped")
		ft.skipNext = true
	case ft.consecutive == ft.thresholds.Degraded:
		log.Warn("Pipeline degraded, resetting proxy pool")
		ft.pool.Reset()
	default:
		log.Warn("Refresh cycle failed")
	}
}

// State derives the pipeline state from the current streak.
func (ft *FailureTrackerService) State() models.PipelineState {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.stateLocked()
}

func (ft *FailureTrackerService) stateLocked() models.PipelineState {
	switch {
	case ft.consecutive >= ft.thresholds.Critical:
		return models.StateCritical
	case ft.consecutive >= ft.thresholds.Degraded:
		return models.StateDegraded
	default:
		return models.StateNormal
	}
}

// ConsumeSkip reports whether the next cycle should be skipped, clearing
// the signal so only one slot is sacrificed per critical failure.
func (ft *FailureTrackerService) ConsumeSkip() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.skipNext {
		return false
	}
	ft.skipNext = false
	return true
}

// Summary returns a snapshot for the health endpoints.
func (ft *FailureTrackerService) Summary() models.HealthSummary {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	summary := models.HealthSummary{
		State:               ft.stateLocked(),
		ConsecutiveFailures: ft.consecutive,
		TotalFailures:       ft.total,
		LastSuccess:         ft.lastSuccess,
	}
	if !ft.lastSuccess.IsZero() {
		summary.MinutesSinceLastSuccess = int(time.Since(ft.lastSuccess).Minutes())
	} else {
		summary.MinutesSinceLastSuccess = -1
	}
	return summary
}
