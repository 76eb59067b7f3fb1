package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/scorewire/match-data-service/internal/proxy"
)

// RequestPolicy bundles the retry, pacing and timeout knobs for upstream
// fetches. Values come from config; tests zero out the sleeps.
type RequestPolicy struct {
	MaxRetries           int
	MinRequestInterval   time.Duration
	JitterMin            time.Duration
	JitterMax            time.Duration
	BackoffMin           time.Duration
	BackoffMax           time.Duration
	RateLimitCooldownMin time.Duration
	RateLimitCooldownMax time.Duration
	ConnectTimeout       time.Duration
	RequestTimeout       time.Duration
}

// SofaScoreClient fetches raw JSON from the SofaScore API through the proxy
// pool, applying rate limiting, browser-mimicking headers, retries and
// backoff. It is safe for concurrent use; the rate limiter is a single
// process-wide gate shared by every attempt.
type SofaScoreClient struct {
	baseURL     string
	pool        *proxy.Pool
	policy      RequestPolicy
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
}

// NewSofaScoreClient creates a new SofaScore API client.
func NewSofaScoreClient(baseURL string, pool *proxy.Pool, policy RequestPolicy, logger *logrus.Logger) *SofaScoreClient {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if policy.MinRequestInterval <= 0 {
		policy.MinRequestInterval = time.Millisecond
	}
	return &SofaScoreClient{
		baseURL:     baseURL,
		pool:        pool,
		policy:      policy,
		rateLimiter: rate.NewLimiter(rate.Every(policy.MinRequestInterval), 1),
		logger:      logger,
	}
}

// Outcome of a single request attempt. The retry loop is driven entirely by
// this classification.
type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	attemptNotFound                 // 404, terminal
	attemptBadPayload               // 200 with invalid JSON, terminal
	attemptProxyBurned              // 403 or transport fault, proxy marked failed
	attemptRateLimited              // 429, long cooldown before continuing
	attemptTransient                // other 4xx/5xx, ambiguous attribution
)

// FetchJSON performs one logical fetch of baseURL+path with up to
// MaxRetries attempts. It returns the raw JSON body on success, or one of
// the terminal sentinels from errors.go.
func (c *SofaScoreClient) FetchJSON(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		entry := c.pool.Next()
		if entry == nil {
			c.logger.WithField("url", url).Error("No available proxies")
			return nil, ErrNoProxyAvailable
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
		// Randomized jitter on top of the rate gate keeps request starts
		// from synchronizing into a detectable pattern.
		if err := sleepCtx(ctx, randomDuration(c.policy.JitterMin, c.policy.JitterMax)); err != nil {
			return nil, err
		}

		log := c.logger.WithFields(logrus.Fields{
			"component": "sofascore_client",
			"url":       url,
			"proxy":     entry.Addr(),
			"attempt":   attempt,
			"attempts":  c.policy.MaxRetries,
		})
		log.Debug("Attempting upstream request")

		body, outcome, status := c.attempt(ctx, url, entry)

		switch outcome {
		case attemptSucceeded:
			log.Debug("Upstream request succeeded")
			return body, nil
		case attemptNotFound:
			log.Info("Upstream resource not found")
			return nil, ErrNotFound
		case attemptBadPayload:
			log.Error("Upstream returned 200 with unparsable body")
			return nil, ErrInvalidPayload
		case attemptProxyBurned:
			c.pool.MarkFailed(entry)
			log.WithField("status", status).Warn("Proxy burned for this target, rotating")
		case attemptRateLimited:
			cooldown := randomDuration(c.policy.RateLimitCooldownMin, c.policy.RateLimitCooldownMax)
			log.WithField("cooldown", cooldown).Warn("Rate limited upstream, cooling down")
			if err := sleepCtx(ctx, cooldown); err != nil {
				return nil, err
			}
		case attemptTransient:
			log.WithField("status", status).Error("Transient upstream failure")
		}

		// Progressive backoff between attempts, never after the last one.
		// The random range scales linearly with the attempt number.
		if attempt < c.policy.MaxRetries {
			backoff := time.Duration(attempt) * randomDuration(c.policy.BackoffMin, c.policy.BackoffMax)
			log.WithField("backoff", backoff).Debug("Waiting before next attempt")
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"component": "sofascore_client",
		"url":       url,
		"attempts":  c.policy.MaxRetries,
	}).Error("Fetch failed after all attempts")
	return nil, ErrExhaustedRetries
}

// attempt issues one HTTP GET through the given proxy and classifies the
// result. The returned status is only meaningful for HTTP-level outcomes.
func (c *SofaScoreClient) attempt(ctx context.Context, url string, entry *proxy.Entry) ([]byte, attemptOutcome, int) {
	client := c.httpClient(entry)
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, attemptTransient, 0
	}
	c.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		// Proxy, connection and timeout faults all count against the
		// proxy that carried them.
		c.logger.WithFields(logrus.Fields{
			"component": "sofascore_client",
			"proxy":     entry.Addr(),
		}).WithError(err).Warn("Transport error")
		return nil, attemptProxyBurned, 0
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, attemptProxyBurned, resp.StatusCode
		}
		if !json.Valid(body) {
			return nil, attemptBadPayload, resp.StatusCode
		}
		return body, attemptSucceeded, resp.StatusCode
	case resp.StatusCode == http.StatusForbidden:
		return nil, attemptProxyBurned, resp.StatusCode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, attemptRateLimited, resp.StatusCode
	case resp.StatusCode == http.StatusNotFound:
		return nil, attemptNotFound, resp.StatusCode
	default:
		return nil, attemptTransient, resp.StatusCode
	}
}

// httpClient builds a per-attempt client routed through the proxy, with a
// distinct connect timeout under the overall request timeout.
func (c *SofaScoreClient) httpClient(entry *proxy.Entry) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyURL(entry.URL()),
		DialContext: (&net.Dialer{
			Timeout: c.policy.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: c.policy.ConnectTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   c.policy.RequestTimeout,
	}
}

// setHeaders applies the browser-mimicking header set with a rotating
// user agent.
func (c *SofaScoreClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Accept-Encoding is left to the transport so gzip bodies decompress
	// transparently.
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Referer", "https://www.sofascore.com/")
	req.Header.Set("Origin", "https://www.sofascore.com")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-site")
}

// FetchLiveEvents fetches the live football events envelope.
func (c *SofaScoreClient) FetchLiveEvents(ctx context.Context) ([]byte, error) {
	return c.FetchJSON(ctx, "/sport/football/events/live")
}

// FetchScheduledEvents fetches scheduled events for a date (YYYY-MM-DD).
func (c *SofaScoreClient) FetchScheduledEvents(ctx context.Context, date string) ([]byte, error) {
	return c.FetchJSON(ctx, "/sport/football/scheduled-events/"+date)
}

// FetchEventDetails fetches full details for one event.
func (c *SofaScoreClient) FetchEventDetails(ctx context.Context, eventID string) ([]byte, error) {
	return c.FetchJSON(ctx, "/event/"+eventID)
}

// FetchEventIncidents fetches goals, cards and timing incidents for one event.
func (c *SofaScoreClient) FetchEventIncidents(ctx context.Context, eventID string) ([]byte, error) {
	return c.FetchJSON(ctx, "/event/"+eventID+"/incidents")
}

// FetchEventLineups fetches lineups for one event.
func (c *SofaScoreClient) FetchEventLineups(ctx context.Context, eventID string) ([]byte, error) {
	return c.FetchJSON(ctx, "/event/"+eventID+"/lineups")
}

// FetchEventStatistics fetches match statistics for one event.
func (c *SofaScoreClient) FetchEventStatistics(ctx context.Context, eventID string) ([]byte, error) {
	return c.FetchJSON(ctx, "/event/"+eventID+"/statistics")
}

// randomDuration returns a uniform duration in [min, max]. A degenerate
// range collapses to min.
func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
