// internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/scorer"
	"github.com/kestrelhq/kestrel/internal/store"
)

// Score at or above which an event escalates to an alert.
const AlertThreshold = 0.5

// Analyzer scores raw events, persists them, and escalates high scores to
// alerts. Persistence failures are logged and the record dropped; nothing
// is retried or queued.
type Analyzer struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates an analyzer writing to st.
func New(st *store.Store, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		store: st,
		log:   log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze scores one event, writes score and severity back onto it, and
// persists it. Returns the created alert when the score clears the
// threshold, nil otherwise.
func (a *Analyzer) Analyze(ctx context.Context, ev *model.Event) *model.Alert {
	score := scorer.Score(ev)
	ev.ThreatScore = score
	ev.Severity = scorer.SeverityFromScore(score)

	a.log.Info().
		Str("title", ev.Title).
		Float64("score", score).
		Str("severity", ev.Severity).
		Msg("event analyzed")

	if err := a.store.InsertEvent(ev); err != nil {
		a.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to save event")
	}

	if score < AlertThreshold {
		return nil
	}

	alert := &model.Alert{
		ID:          model.NewID(),
		EventID:     ev.ID,
		Severity:    ev.Severity,
		Title:       ev.Title,
		Description: ev.Description,
		Status:      model.StatusNew,
		ThreatScore: score,
		CreatedAt:   time.Now().UTC(),
	}

	if err := a.store.InsertAlert(alert); err != nil {
		a.log.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to save alert")
	} else {
		a.log.Warn().
			Str("title", alert.Title).
			Str("severity", alert.Severity).
			Msg("alert created")
	}

	return alert
}

// AnalyzeBatch analyzes events in arrival order and returns the alerts
// created. Each item's persistence is an independent operation; a failure
// partway through is not rolled back.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, events []model.Event) []model.Alert {
	var alerts []model.Alert
	for i := range events {
		if alert := a.Analyze(ctx, &events[i]); alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	if len(alerts) > 0 {
		a.log.Warn().
			Int("alerts", len(alerts)).
			Int("events", len(events)).
			Msg("batch produced alerts")
	}

	return alerts
}
