package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// IncidentBreakerService guards the per-match incidents sub-fetch. Scorer
// enrichment is best effort; when the incidents endpoint keeps failing the
// breaker opens and live matches are served without scorer detail instead
// of burning attempts against a failing endpoint.
type IncidentBreakerService struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewIncidentBreakerService creates the breaker. It trips once at least
// three requests have been seen and the failure ratio crosses 60%.
func NewIncidentBreakerService(threshold int, timeout time.Duration, logger *logrus.Logger) *IncidentBreakerService {
	settings := gobreaker.Settings{
		Name:        "sofascore-incidents",
		MaxRequests: uint32(threshold),
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &IncidentBreakerService{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute wraps an incidents fetch with circuit breaker protection.
func (cb *IncidentBreakerService) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// Open reports whether the breaker currently rejects calls.
func (cb *IncidentBreakerService) Open() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// State returns the current breaker state for the status endpoint.
func (cb *IncidentBreakerService) State() gobreaker.State {
	return cb.breaker.State()
}
