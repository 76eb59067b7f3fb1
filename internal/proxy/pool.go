package proxy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
)

// Entry is one egress proxy with its mutable health flag. Entries are fixed
// at startup and never removed, only marked failed and re-enabled.
type Entry struct {
	Host     string
	Port     string
	Username string
	Password string

	healthy bool
}

// Addr returns the host:port pair without credentials, safe for logging.
func (e *Entry) Addr() string {
	return e.Host + ":" + e.Port
}

// URL builds the proxy URL used by the HTTP transport.
func (e *Entry) URL() *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   e.Addr(),
	}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// ParseEntry parses the host:port:username:password format used in proxy
// provider exports. The credential pair is optional.
func ParseEntry(s string) (*Entry, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 2:
		return &Entry{Host: parts[0], Port: parts[1], healthy: true}, nil
	case 4:
		return &Entry{Host: parts[0], Port: parts[1], Username: parts[2], Password: parts[3], healthy: true}, nil
	default:
		return nil, fmt.Errorf("invalid proxy %q: want host:port or host:port:user:pass", s)
	}
}

// Pool owns the ordered set of egress proxies and the rotation cursor. All
// health state lives behind the pool's mutex.
type Pool struct {
	mu      sync.Mutex
	entries []*Entry
	cursor  int
	current *Entry
	logger  *logrus.Logger
}

// NewPool builds a pool from proxy strings, skipping entries that fail to
// parse.
func NewPool(proxies []string, logger *logrus.Logger) *Pool {
	pool := &Pool{logger: logger}
	for _, s := range proxies {
		entry, err := ParseEntry(s)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"component": "proxy_pool",
				"proxy":     s,
			}).WithError(err).Warn("Skipping unparsable proxy entry")
			continue
		}
		pool.entries = append(pool.entries, entry)
	}
	logger.WithFields(logrus.Fields{
		"component": "proxy_pool",
		"proxies":   len(pool.entries),
	}).Info("Proxy pool initialized")
	return pool
}

// Next returns the next healthy proxy in rotation order. It walks the
// rotation at most twice; if every entry is failed it clears all failure
// marks and returns the entry at the cursor, so a non-empty pool never
// deadlocks. Returns nil only when the pool is empty.
func (p *Pool) Next() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return nil
	}

	maxSteps := len(p.entries) * 2
	for i := 0; i < maxSteps; i++ {
		entry := p.entries[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.entries)
		if entry.healthy {
			p.current = entry
			return entry
		}
	}

	// Full rotation exhausted: every proxy is marked failed. Reset and
	// hand out the entry at the cursor rather than giving up.
	p.logger.WithField("component", "proxy_pool").Warn("All proxies failed, resetting failed proxy list")
	p.resetLocked()
	entry := p.entries[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.entries)
	p.current = entry
	return entry
}

// MarkFailed flips the entry's health flag. Capacity is fixed at startup;
// the entry stays in rotation and comes back on the next reset.
func (p *Pool) MarkFailed(entry *Entry) {
	if entry == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry.healthy {
		entry.healthy = false
		p.logger.WithFields(logrus.Fields{
			"component": "proxy_pool",
			"proxy":     entry.Addr(),
		}).Warn("Proxy marked failed")
	}
}

// Reset clears all failure marks. Invoked by the failure tracker after a
// run of consecutive refresh failures, and by the manual operator action.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	p.logger.WithField("component", "proxy_pool").Info("Proxy pool reset, all entries re-enabled")
}

func (p *Pool) resetLocked() {
	for _, entry := range p.entries {
		entry.healthy = true
	}
}

// Size returns the number of entries in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Healthy reports whether the entry is currently in rotation.
func (p *Pool) Healthy(entry *Entry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return entry != nil && entry.healthy
}

// Status returns a snapshot of pool health for the status endpoint.
func (p *Pool) Status() models.ProxyPoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := models.ProxyPoolStatus{Total: len(p.entries)}
	for _, entry := range p.entries {
		if entry.healthy {
			status.Available++
		} else {
			status.Failed++
		}
	}
	if p.current != nil {
		status.CurrentProxy = p.current.Addr()
	}
	return status
}
