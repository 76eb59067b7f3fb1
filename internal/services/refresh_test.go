package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorewire/match-data-service/internal/models"
	"github.com/scorewire/match-data-service/internal/providers"
)

// fakeFetcher scripts upstream responses per resource.
type fakeFetcher struct {
	mu            sync.Mutex
	liveBody      []byte
	liveErr       error
	scheduledBody []byte
	scheduledErr  error
	incidentsBody []byte
	incidentsErr  error

	liveCalls      int
	scheduledCalls int
	incidentCalls  int
}

func (f *fakeFetcher) FetchLiveEvents(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveCalls++
	return f.liveBody, f.liveErr
}

func (f *fakeFetcher) FetchScheduledEvents(ctx context.Context, date string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduledCalls++
	return f.scheduledBody, f.scheduledErr
}

func (f *fakeFetcher) FetchEventIncidents(ctx context.Context, eventID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidentCalls++
	return f.incidentsBody, f.incidentsErr
}

func newTestRefresher(fetcher *fakeFetcher) (*RefreshService, *MatchCacheService, *FailureTrackerService) {
	logger := testLogger()
	cache := NewMatchCacheService(newMemStore(), testPolicy(), logger)
	tracker := NewFailureTrackerService(defaultThresholds(), &fakePool{}, logger)
	breaker := NewIncidentBreakerService(3, 30*time.Second, logger)
	refresher := NewRefreshService(fetcher, NewMatchNormalizer(logger), cache, tracker, breaker, logger)
	return refresher, cache, tracker
}

func TestRunCycleSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		liveBody:      []byte(`{"events":[{"id":1,"homeTeam":{"name":"A"},"awayTeam":{"name":"B"},"homeScore":{"current":1}}]}`),
		scheduledBody: []byte(`{"events":[{"id":2,"homeTeam":{"name":"C"},"awayTeam":{"name":"D"}}]}`),
		incidentsBody: []byte(`{"incidents":[{"incidentType":"goal","isHome":true,"player":{"name":"Kane"},"time":12}]}`),
	}
	refresher, cache, tracker := newTestRefresher(fetcher)

	require.NoError(t, refresher.RunCycle(context.Background()))

	live, ok := cache.Get(ResourceLive)
	require.True(t, ok)
	require.Equal(t, 1, live.Count())
	assert.Equal(t, models.EntryStatusSuccess, live.Status)
	require.Len(t, live.Matches[0].HomeScorers, 1)
	assert.Equal(t, "Kane", live.Matches[0].HomeScorers[0].Name)

	today := time.Now().Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	_, ok = cache.Get(ScheduledResourceKey(today))
	assert.True(t, ok)
	_, ok = cache.Get(ScheduledResourceKey(tomorrow))
	assert.True(t, ok)
	assert.Equal(t, 2, fetcher.scheduledCalls, "today and tomorrow")

	assert.Equal(t, models.StateNormal, tracker.State())
	assert.Equal(t, 0, tracker.Summary().TotalFailures)
}

func TestRunCycleTotalFailureFeedsTracker(t *testing.T) {
	fetcher := &fakeFetcher{
		liveErr:      providers.ErrExhaustedRetries,
		scheduledErr: providers.ErrExhaustedRetries,
	}
	refresher, cache, tracker := newTestRefresher(fetcher)

	// Populate, then fail a cycle; the last good payload must survive.
	cache.Put(ResourceLive, sampleMatches())

	require.NoError(t, refresher.RunCycle(context.Background()))

	entry, ok := cache.Get(ResourceLive)
	require.True(t, ok)
	assert.Equal(t, models.EntryStatusStale, entry.Status)
	assert.Equal(t, 2, entry.Count(), "failed refresh preserves cached matches")

	assert.Equal(t, 1, tracker.Summary().ConsecutiveFailures)
}

func TestRunCyclePartialSuccessIsSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		liveErr:       providers.ErrExhaustedRetries,
		scheduledBody: []byte(`{"events":[]}`),
	}
	refresher, _, tracker := newTestRefresher(fetcher)

	require.NoError(t, refresher.RunCycle(context.Background()))
	assert.Equal(t, 0, tracker.Summary().ConsecutiveFailures, "one refreshed resource keeps the cycle green")
}

func TestRunCycleNotFoundIsEmptyResult(t *testing.T) {
	fetcher := &fakeFetcher{
		liveErr:      providers.ErrNotFound,
		scheduledErr: providers.ErrNotFound,
	}
	refresher, cache, tracker := newTestRefresher(fetcher)

	require.NoError(t, refresher.RunCycle(context.Background()))

	entry, ok := cache.Get(ResourceLive)
	require.True(t, ok)
	assert.Equal(t, models.EntryStatusSuccess, entry.Status, "no live football is a valid empty result")
	assert.Equal(t, 0, entry.Count())
	assert.Equal(t, models.StateNormal, tracker.State())
}

func TestRunCycleIncidentFailureLeavesMatchIntact(t *testing.T) {
	fetcher := &fakeFetcher{
		liveBody:      []byte(`{"events":[{"id":1,"homeTeam":{"name":"A"},"awayTeam":{"name":"B"}}]}`),
		scheduledBody: []byte(`{"events":[]}`),
		incidentsErr:  providers.ErrExhaustedRetries,
	}
	refresher, cache, _ := newTestRefresher(fetcher)

	require.NoError(t, refresher.RunCycle(context.Background()))

	live, ok := cache.Get(ResourceLive)
	require.True(t, ok)
	require.Equal(t, 1, live.Count())
	assert.Empty(t, live.Matches[0].HomeScorers, "enrichment is best effort")
	assert.Equal(t, models.EntryStatusSuccess, live.Status)
}

func TestRunCycleSkipsEnrichmentWhenBreakerOpen(t *testing.T) {
	fetcher := &fakeFetcher{
		liveBody:      []byte(`{"events":[{"id":1,"homeTeam":{"name":"A"},"awayTeam":{"name":"B"}}]}`),
		scheduledBody: []byte(`{"events":[]}`),
		incidentsErr:  providers.ErrExhaustedRetries,
	}
	refresher, _, _ := newTestRefresher(fetcher)

	// Repeated cycles trip the breaker; once open the incidents endpoint is
	// no longer called at all.
	for i := 0; i < 5; i++ {
		require.NoError(t, refresher.RunCycle(context.Background()))
	}
	callsWhenTripped := fetcher.incidentCalls

	require.NoError(t, refresher.RunCycle(context.Background()))
	assert.Equal(t, callsWhenTripped, fetcher.incidentCalls)
}

func TestRunCycleSingleFlight(t *testing.T) {
	refresher, _, _ := newTestRefresher(&fakeFetcher{scheduledBody: []byte(`{"events":[]}`), liveBody: []byte(`{"events":[]}`)})

	refresher.running.Lock()
	err := refresher.RunCycle(context.Background())
	refresher.running.Unlock()

	assert.ErrorIs(t, err, ErrRefreshInProgress)
}
