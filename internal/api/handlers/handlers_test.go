package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorewire/match-data-service/internal/models"
	"github.com/scorewire/match-data-service/internal/providers"
	"github.com/scorewire/match-data-service/internal/proxy"
	"github.com/scorewire/match-data-service/internal/services"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Load(key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, services.ErrKeyNotFound
	}
	return data, nil
}
func (m *memStore) Save(key string, data []byte) error { m.data[key] = data; return nil }
func (m *memStore) Delete(key string) error            { delete(m.data, key); return nil }
func (m *memStore) Keys() ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

type staticFetcher struct{}

func (staticFetcher) FetchLiveEvents(ctx context.Context) ([]byte, error) {
	return []byte(`{"events":[]}`), nil
}
func (staticFetcher) FetchScheduledEvents(ctx context.Context, date string) ([]byte, error) {
	return []byte(`{"events":[]}`), nil
}
func (staticFetcher) FetchEventIncidents(ctx context.Context, eventID string) ([]byte, error) {
	return []byte(`{"incidents":[]}`), nil
}

type testEnv struct {
	cache   *services.MatchCacheService
	tracker *services.FailureTrackerService
	pool    *proxy.Pool
	router  *gin.Engine
}

func newTestEnv(t *testing.T, proxies []string, upstreamURL string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := testLogger()

	pool := proxy.NewPool(proxies, logger)
	client := providers.NewSofaScoreClient(upstreamURL, pool, providers.RequestPolicy{MaxRetries: 1}, logger)
	cache := services.NewMatchCacheService(newMemStore(), services.StalenessPolicy{
		LiveStaleAfter:      5 * time.Minute,
		ScheduledStaleAfter: 6 * time.Hour,
	}, logger)
	tracker := services.NewFailureTrackerService(services.FailureThresholds{
		Degraded: 3, Critical: 5, ForceReset: 10,
	}, pool, logger)
	breaker := services.NewIncidentBreakerService(3, 30*time.Second, logger)
	refresher := services.NewRefreshService(staticFetcher{}, services.NewMatchNormalizer(logger), cache, tracker, breaker, logger)

	matchHandler := NewMatchHandler(cache, refresher, client, logger)
	healthHandler := NewHealthHandler(cache, tracker, pool, breaker, logger)
	adminHandler := NewAdminHandler(pool, logger)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/livescores", matchHandler.GetLiveScores)
	api.GET("/scheduled", matchHandler.GetScheduled)
	api.GET("/scheduled/:date", matchHandler.GetScheduledByDate)
	api.POST("/refresh", matchHandler.RefreshData)
	api.GET("/status", healthHandler.GetStatus)
	api.GET("/match/:id", matchHandler.GetMatchDetails)
	api.POST("/admin/proxies/reset", adminHandler.ResetProxies)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/metrics", healthHandler.GetMetrics)

	return &testEnv{cache: cache, tracker: tracker, pool: pool, router: router}
}

func (e *testEnv) request(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetLiveScoresEmptyCache(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")

	w := env.request(http.MethodGet, "/api/livescores")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.EntryStatusStale, resp.Status)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Matches)
	assert.Nil(t, resp.LastUpdate)
}

func TestGetLiveScoresServesCachedMatches(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")
	env.cache.Put(services.ResourceLive, []models.NormalizedMatch{
		{ID: 1, Home: "A", Away: "B", HomeScore: 1, IsLive: true},
	})

	w := env.request(http.MethodGet, "/api/livescores")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.EntryStatusSuccess, resp.Status)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "A", resp.Matches[0].Home)
	require.NotNil(t, resp.LastUpdate)
}

func TestGetScheduledMergesTodayAndTomorrow(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")
	now := time.Now()
	env.cache.Put(services.ScheduledResourceKey(now.Format("2006-01-02")),
		[]models.NormalizedMatch{{ID: 1, Home: "A", Away: "B"}})
	env.cache.Put(services.ScheduledResourceKey(now.AddDate(0, 0, 1).Format("2006-01-02")),
		[]models.NormalizedMatch{{ID: 2, Home: "C", Away: "D"}})

	w := env.request(http.MethodGet, "/api/scheduled")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, models.EntryStatusSuccess, resp.Status)
}

func TestGetScheduledByDateValidation(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")

	w := env.request(http.MethodGet, "/api/scheduled/not-a-date")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(http.MethodGet, "/api/scheduled/2026-08-31")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshDataAccepted(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")

	w := env.request(http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestGetHealthOK(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")
	env.cache.Put(services.ResourceLive, nil)
	env.tracker.RecordSuccess()

	w := env.request(http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "match-data-service", resp.Service)
}

func TestGetHealthDegradedOnFailureStreak(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")
	for i := 0; i < 3; i++ {
		env.tracker.RecordFailure()
	}

	w := env.request(http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp models.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, string(models.StateDegraded), resp.Checks["pipeline"])
}

func TestGetHealthDegradedOnStaleLiveData(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")
	env.cache.Put(services.ResourceLive, nil)
	env.cache.MarkStale(services.ResourceLive)

	w := env.request(http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetStatusAndMetrics(t *testing.T) {
	env := newTestEnv(t, []string{"10.0.0.1:8080"}, "http://upstream.test")
	env.cache.Put(services.ResourceLive, []models.NormalizedMatch{{ID: 1, Home: "A", Away: "B"}})
	env.cache.Put(services.ScheduledResourceKey("2026-08-31"), []models.NormalizedMatch{
		{ID: 2, Home: "C", Away: "D"}, {ID: 3, Home: "E", Away: "F"},
	})

	w := env.request(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	stats := status["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["liveMatches"])
	assert.Equal(t, float64(2), stats["scheduledMatches"])
	assert.Equal(t, float64(3), stats["totalMatches"])

	w = env.request(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var metrics map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.Equal(t, float64(1), metrics["live_matches_total"])
	assert.Equal(t, float64(1), metrics["proxies_available"])
}

func TestResetProxies(t *testing.T) {
	env := newTestEnv(t, []string{"10.0.0.1:8080", "10.0.0.2:8080"}, "http://upstream.test")
	env.pool.MarkFailed(env.pool.Next())
	require.Equal(t, 1, env.pool.Status().Failed)

	w := env.request(http.MethodPost, "/api/admin/proxies/reset")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.pool.Status().Failed)
}

func TestGetMatchDetailsPassThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/event/404") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"event":{"id":77}}`))
	}))
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	env := newTestEnv(t, []string{addr}, "http://upstream.test/api/v1")

	w := env.request(http.MethodGet, "/api/match/77")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"event":{"id":77}}`, w.Body.String())

	w = env.request(http.MethodGet, "/api/match/404")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMatchDetailsNoProxies(t *testing.T) {
	env := newTestEnv(t, nil, "http://upstream.test")

	w := env.request(http.MethodGet, "/api/match/77")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
