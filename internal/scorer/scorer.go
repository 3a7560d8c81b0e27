// internal/scorer/scorer.go
package scorer

import (
	"math"
	"strings"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Base scores per event type. Unknown types fall back to 0.3.
var baseScores = map[string]float64{
	model.EventSuspiciousProcess: 0.8,
	model.EventNetworkAnomaly:    0.6,
	model.EventFileChange:        0.5,
	model.EventHighResource:      0.3,
	model.EventPortScan:          0.7,
	model.EventBruteForce:        0.8,
	model.EventUSBDevice:         0.4,
}

// Keywords in the event title or description that bump the score.
// The bonus applies once no matter how many match.
var criticalKeywords = []string{
	"mimikatz", "keylogger", "malware",
	"backdoor", "trojan", "ransomware",
}

const (
	keywordBonus    = 0.15
	connectionBonus = 0.10

	// Evidence reporting more than this many connections is suspicious
	// on its own.
	connectionLimit = 50
)

// Score computes the threat score for an event. Pure: the event is not
// modified. The result is clamped to [0,1] and rounded to 2 decimals.
func Score(ev *model.Event) float64 {
	score, ok := baseScores[ev.EventType]
	if !ok {
		score = 0.3
	}

	// Collectors may pre-seed a score; average it with the base.
	if ev.ThreatScore > 0 {
		score = (score + ev.ThreatScore) / 2
	}

	text := strings.ToLower(ev.Title + " " + ev.Description)
	for _, kw := range criticalKeywords {
		if strings.Contains(text, kw) {
			score += keywordBonus
			break
		}
	}

	if ev.RawData != nil {
		if total, ok := asInt(ev.RawData["total_connections"]); ok && total > connectionLimit {
			score += connectionBonus
		}
	}

	score = math.Round(score*100) / 100
	return math.Max(0.0, math.Min(1.0, score))
}

// SeverityFromScore maps a score to its severity label.
func SeverityFromScore(score float64) string {
	switch {
	case score >= 0.7:
		return model.SeverityCritical
	case score >= 0.5:
		return model.SeverityHigh
	case score >= 0.3:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// asInt normalizes evidence values that may arrive as int or float
// depending on whether they came straight from a collector or through a
// JSON round trip.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
