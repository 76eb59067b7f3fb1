package services

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/models"
)

// Logical resource keys.
const ResourceLive = "live"

const scheduledKeyPrefix = "scheduled:"

// ScheduledResourceKey builds the cache key for one date (YYYY-MM-DD).
func ScheduledResourceKey(date string) string {
	return scheduledKeyPrefix + date
}

// StalenessPolicy holds the per-resource freshness thresholds. Live data
// goes stale in minutes, scheduled fixtures tolerate hours.
type StalenessPolicy struct {
	LiveStaleAfter      time.Duration
	ScheduledStaleAfter time.Duration
}

func (p StalenessPolicy) thresholdFor(key string) time.Duration {
	if key == ResourceLive {
		return p.LiveStaleAfter
	}
	return p.ScheduledStaleAfter
}

// MatchCacheService holds the latest normalized payload per logical
// resource, written only by the refresh pipeline and read concurrently by
// the serving layer. Reads get snapshots; writers never block readers
// beyond the RWMutex hand-off. Entries are written through to the Store so
// they survive restarts.
type MatchCacheService struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	store   Store
	policy  StalenessPolicy
	logger  *logrus.Logger
}

// NewMatchCacheService creates an empty cache backed by the given store.
func NewMatchCacheService(store Store, policy StalenessPolicy, logger *logrus.Logger) *MatchCacheService {
	return &MatchCacheService{
		entries: make(map[string]models.CacheEntry),
		store:   store,
		policy:  policy,
		logger:  logger,
	}
}

// WarmFromStore loads every persisted entry so consumers have data
// immediately after a restart. Unreadable blobs are skipped, not fatal.
func (mc *MatchCacheService) WarmFromStore() {
	keys, err := mc.store.Keys()
	if err != nil {
		mc.logger.WithField("component", "match_cache").WithError(err).Warn("Could not list persisted entries")
		return
	}

	loaded := 0
	for _, key := range keys {
		data, err := mc.store.Load(key)
		if err != nil {
			mc.logger.WithFields(logrus.Fields{
				"component": "match_cache",
				"key":       key,
			}).WithError(err).Warn("Could not load persisted entry")
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			mc.logger.WithFields(logrus.Fields{
				"component": "match_cache",
				"key":       key,
			}).WithError(err).Warn("Persisted entry is corrupt, skipping")
			continue
		}
		mc.mu.Lock()
		mc.entries[key] = entry
		mc.mu.Unlock()
		loaded++
	}
	mc.logger.WithFields(logrus.Fields{
		"component": "match_cache",
		"entries":   loaded,
	}).Info("Cache warmed from store")
}

// Get returns a snapshot of the entry for key. The returned status reflects
// the staleness policy at read time: an entry past its threshold reads as
// stale even though the stored status is untouched. The second result is
// false when no data has ever been cached for the key.
func (mc *MatchCacheService) Get(key string) (models.CacheEntry, bool) {
	mc.mu.RLock()
	entry, ok := mc.entries[key]
	mc.mu.RUnlock()
	if !ok {
		return models.CacheEntry{Matches: []models.NormalizedMatch{}}, false
	}

	if entry.Status == models.EntryStatusSuccess &&
		entry.Age(time.Now()) > mc.policy.thresholdFor(key) {
		entry.Status = models.EntryStatusStale
	}
	return entry, true
}

// Put overwrites the entry for key with fresh matches and persists it. Put
// is never called with "no new data"; failed refreshes go through MarkStale.
func (mc *MatchCacheService) Put(key string, matches []models.NormalizedMatch) {
	if matches == nil {
		matches = []models.NormalizedMatch{}
	}
	entry := models.CacheEntry{
		Matches:    matches,
		LastUpdate: time.Now(),
		Status:     models.EntryStatusSuccess,
	}

	mc.mu.Lock()
	mc.entries[key] = entry
	mc.mu.Unlock()

	mc.persist(key, entry)
	mc.logger.WithFields(logrus.Fields{
		"component": "match_cache",
		"key":       key,
		"matches":   len(matches),
	}).Info("Cache entry updated")
}

// MarkStale flips the entry's status in place, preserving the last good
// matches. Marking a key that was never populated is a no-op; there is
// nothing to preserve.
func (mc *MatchCacheService) MarkStale(key string) {
	mc.mu.Lock()
	entry, ok := mc.entries[key]
	if ok && entry.Status != models.EntryStatusStale {
		entry.Status = models.EntryStatusStale
		mc.entries[key] = entry
	}
	mc.mu.Unlock()

	if ok {
		mc.persist(key, entry)
		mc.logger.WithFields(logrus.Fields{
			"component": "match_cache",
			"key":       key,
		}).Warn("Cache entry marked stale, serving last good payload")
	}
}

func (mc *MatchCacheService) persist(key string, entry models.CacheEntry) {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		mc.logger.WithField("key", key).WithError(err).Error("Could not marshal cache entry")
		return
	}
	if err := mc.store.Save(key, data); err != nil {
		mc.logger.WithField("key", key).WithError(err).Error("Could not persist cache entry")
	}
}

// Keys returns all cached resource keys.
func (mc *MatchCacheService) Keys() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	keys := make([]string, 0, len(mc.entries))
	for k := range mc.entries {
		keys = append(keys, k)
	}
	return keys
}

// CleanupScheduled drops scheduled-date entries older than the retention
// window from both memory and the store, returning how many were removed.
func (mc *MatchCacheService) CleanupScheduled(retentionDays int) int {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	removed := 0

	for _, key := range mc.Keys() {
		if !strings.HasPrefix(key, scheduledKeyPrefix) {
			continue
		}
		date := strings.TrimPrefix(key, scheduledKeyPrefix)
		if date >= cutoff {
			continue
		}

		mc.mu.Lock()
		delete(mc.entries, key)
		mc.mu.Unlock()
		if err := mc.store.Delete(key); err != nil {
			mc.logger.WithField("key", key).WithError(err).Warn("Could not delete persisted entry")
		}
		removed++
	}

	if removed > 0 {
		mc.logger.WithFields(logrus.Fields{
			"component": "match_cache",
			"removed":   removed,
		}).Info("Old scheduled entries cleaned up")
	}
	return removed
}
