package services

import (
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/scorewire/match-data-service/internal/models"
)

// MatchNormalizer maps raw upstream JSON payloads into the stable match
// schema. Upstream payloads are treated as a loosely-typed tree: every field
// access carries an explicit default, and one malformed event never drops
// the rest of the batch.
type MatchNormalizer struct {
	logger *logrus.Logger
}

// NewMatchNormalizer creates a new normalizer.
func NewMatchNormalizer(logger *logrus.Logger) *MatchNormalizer {
	return &MatchNormalizer{logger: logger}
}

// NormalizeLive maps a live events envelope into normalized matches,
// preserving upstream order. Events without both team names are skipped and
// logged.
func (n *MatchNormalizer) NormalizeLive(raw []byte) []models.NormalizedMatch {
	return n.normalizeEvents(raw, true, "Unknown")
}

// NormalizeScheduled maps a scheduled events envelope into normalized
// matches. Scores default to zero; scheduled events carry none.
func (n *MatchNormalizer) NormalizeScheduled(raw []byte) []models.NormalizedMatch {
	return n.normalizeEvents(raw, false, "Scheduled")
}

func (n *MatchNormalizer) normalizeEvents(raw []byte, live bool, defaultStatus string) []models.NormalizedMatch {
	matches := make([]models.NormalizedMatch, 0)
	skipped := 0

	gjson.GetBytes(raw, "events").ForEach(func(_, event gjson.Result) bool {
		home := event.Get("homeTeam.name")
		away := event.Get("awayTeam.name")
		if !home.Exists() || !away.Exists() || home.String() == "" || away.String() == "" {
			skipped++
			n.logger.WithFields(logrus.Fields{
				"component": "normalizer",
				"event_id":  event.Get("id").Int(),
			}).Warn("Skipping event with missing team names")
			return true
		}

		match := models.NormalizedMatch{
			ID:         event.Get("id").Int(),
			Home:       home.String(),
			Away:       away.String(),
			Status:     defaultString(event.Get("status.description"), defaultStatus),
			Tournament: event.Get("tournament.name").String(),
			StartTime:  event.Get("startTimestamp").Int(),
			IsLive:     live,
		}
		if live {
			match.HomeScore = int(event.Get("homeScore.current").Int())
			match.AwayScore = int(event.Get("awayScore.current").Int())
			match.HomeScorers = []models.ScorerEvent{}
			match.AwayScorers = []models.ScorerEvent{}
		} else {
			// Scheduled payloads may carry final scores for finished
			// fixtures on the same date; keep them.
			match.HomeScore = int(event.Get("homeScore.current").Int())
			match.AwayScore = int(event.Get("awayScore.current").Int())
		}

		matches = append(matches, match)
		return true
	})

	if skipped > 0 {
		n.logger.WithFields(logrus.Fields{
			"component": "normalizer",
			"skipped":   skipped,
			"kept":      len(matches),
		}).Warn("Some events were skipped during normalization")
	}
	return matches
}

// EnrichWithIncidents adds scorer events and current match timing from an
// incidents payload. Best effort: anything missing degrades to defaults.
func (n *MatchNormalizer) EnrichWithIncidents(match *models.NormalizedMatch, raw []byte) {
	gjson.GetBytes(raw, "incidents").ForEach(func(_, incident gjson.Result) bool {
		if incident.Get("incidentType").String() == "goal" {
			scorer := models.ScorerEvent{
				Name:   defaultString(incident.Get("player.name"), "Unknown"),
				Minute: int(incident.Get("time").Int()),
			}
			if incident.Get("isHome").Bool() {
				match.HomeScorers = append(match.HomeScorers, scorer)
			} else {
				match.AwayScorers = append(match.AwayScorers, scorer)
			}
		}

		// The latest incident carrying a time marker wins.
		if t := incident.Get("time"); t.Exists() && t.Int() > 0 {
			match.CurrentTime = int(t.Int())
		}
		if at := incident.Get("addedTime"); at.Exists() {
			match.AddedTime = int(at.Int())
		}
		return true
	})
}

func defaultString(r gjson.Result, fallback string) string {
	if r.Exists() && r.String() != "" {
		return r.String()
	}
	return fallback
}
