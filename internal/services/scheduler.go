package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
)

// Refresher is the slice of the refresh pipeline the scheduler drives.
type Refresher interface {
	RunCycle(ctx context.Context) error
}

// SchedulerConfig holds the scheduler's pacing knobs.
type SchedulerConfig struct {
	BaseInterval       time.Duration
	DegradedMultiplier int
	RetentionDays      int
}

// SchedulerService drives refresh cycles on an adaptive interval: the base
// interval while the pipeline is healthy, widened while degraded or
// critical, and narrowed back to base on the next success. This is a
// control loop, not a cron schedule; it trades freshness for reduced
// pressure on a failing upstream. Fixed housekeeping (the daily cache
// cleanup) runs on a separate cron instance.
type SchedulerService struct {
	refresher Refresher
	tracker   *FailureTrackerService
	cache     *MatchCacheService
	cfg       SchedulerConfig
	logger    *logrus.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
}

// NewSchedulerService creates a stopped scheduler.
func NewSchedulerService(
	refresher Refresher,
	tracker *FailureTrackerService,
	cache *MatchCacheService,
	cfg SchedulerConfig,
	logger *logrus.Logger,
) *SchedulerService {
	if cfg.DegradedMultiplier < 1 {
		cfg.DegradedMultiplier = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		refresher: refresher,
		tracker:   tracker,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		cron:      cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the timer loop and the daily cleanup job.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Daily cleanup of old scheduled-date entries at 03:00.
	if _, err := s.cron.AddFunc("0 3 * * *", s.runCleanup); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.loop()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"component":     "scheduler",
		"base_interval": s.cfg.BaseInterval,
	}).Info("Scheduler started")
	return nil
}

func (s *SchedulerService) loop() {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(s.nextInterval())
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// In the critical state the slot after a failure is sacrificed
		// entirely; no fetch attempt is made.
		if s.tracker.ConsumeSkip() {
			s.logger.WithField("component", "scheduler").Warn("Pipeline critical, skipping this refresh cycle")
			continue
		}

		// The cycle gets a fresh context: shutdown stops the timer loop
		// but never interrupts a cycle already in flight.
		if err := s.refresher.RunCycle(context.Background()); err != nil && !errors.Is(err, ErrRefreshInProgress) {
			s.logger.WithField("component", "scheduler").WithError(err).Error("Refresh cycle error")
		}
	}
}

// nextInterval widens the wait while the pipeline is degraded or critical.
func (s *SchedulerService) nextInterval() time.Duration {
	if s.tracker.State() != models.StateNormal {
		return s.cfg.BaseInterval * time.Duration(s.cfg.DegradedMultiplier)
	}
	return s.cfg.BaseInterval
}

func (s *SchedulerService) runCleanup() {
	removed := s.cache.CleanupScheduled(s.cfg.RetentionDays)
	s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job":       "daily_cleanup",
		"removed":   removed,
	}).Info("Daily cleanup completed")
}

// Stop halts the timer loop and the cron instance. An in-flight refresh
// cycle is not interrupted; the loop exits after it completes.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cancel()
	s.wg.Wait()

	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "scheduler").Warn("Cron stop timed out")
	}

	s.isRunning = false
	s.logger.WithField("component", "scheduler").Info("Scheduler stopped")
}
