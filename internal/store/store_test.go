// internal/store/store_test.go
package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAndQueryEvent(t *testing.T) {
	st := newTestStore(t)

	ev := &model.Event{
		ID:            model.NewID(),
		EventType:     model.EventNetworkAnomaly,
		Severity:      model.SeverityHigh,
		Title:         "Connection to suspicious port 4444",
		Description:   "Outgoing connection to 203.0.113.9:4444",
		Source:        "network",
		SourceIP:      "10.0.0.5",
		DestinationIP: "203.0.113.9",
		ThreatScore:   0.8,
		RawData:       map[string]any{"remote": "203.0.113.9:4444"},
		CreatedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	if err := st.InsertEvent(ev); err != nil {
		t.Fatalf("InsertEvent error: %v", err)
	}

	events, err := st.QueryEvents(10)
	if err != nil {
		t.Fatalf("QueryEvents error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("QueryEvents returned %d events, want 1", len(events))
	}
	got := events[0]
	if got.EventType != model.EventNetworkAnomaly {
		t.Errorf("EventType = %q, want %q", got.EventType, model.EventNetworkAnomaly)
	}
	if got.ThreatScore != 0.8 {
		t.Errorf("ThreatScore = %v, want 0.8", got.ThreatScore)
	}
	if got.RawData["remote"] != "203.0.113.9:4444" {
		t.Errorf("RawData[remote] = %v, want 203.0.113.9:4444", got.RawData["remote"])
	}

	single, err := st.GetEvent(ev.ID)
	if err != nil {
		t.Fatalf("GetEvent error: %v", err)
	}
	if single.Title != ev.Title {
		t.Errorf("Title = %q, want %q", single.Title, ev.Title)
	}

	if _, err := st.GetEvent("no-such-id"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetEvent(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestAlertsFilterAndUpdate(t *testing.T) {
	st := newTestStore(t)

	a := &model.Alert{
		ID:          model.NewID(),
		EventID:     model.NewID(),
		Severity:    model.SeverityCritical,
		Title:       "Suspicious process detected: mimikatz.exe",
		Status:      model.StatusNew,
		ThreatScore: 0.95,
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.InsertAlert(a); err != nil {
		t.Fatalf("InsertAlert error: %v", err)
	}

	alerts, err := st.QueryAlerts(model.StatusNew, 10)
	if err != nil {
		t.Fatalf("QueryAlerts error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("QueryAlerts(new) returned %d, want 1", len(alerts))
	}
	if alerts[0].ResolvedAt != nil {
		t.Errorf("ResolvedAt = %v, want nil", alerts[0].ResolvedAt)
	}

	// Resolve stamps resolved_at.
	if err := st.UpdateAlertStatus(a.ID, model.StatusResolved, "killed process"); err != nil {
		t.Fatalf("UpdateAlertStatus error: %v", err)
	}

	alerts, err = st.QueryAlerts(model.StatusResolved, 10)
	if err != nil {
		t.Fatalf("QueryAlerts error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("QueryAlerts(resolved) returned %d, want 1", len(alerts))
	}
	if alerts[0].ActionTaken != "killed process" {
		t.Errorf("ActionTaken = %q, want %q", alerts[0].ActionTaken, "killed process")
	}
	if alerts[0].ResolvedAt == nil {
		t.Error("ResolvedAt = nil, want timestamp")
	}

	// Status filter excludes the resolved alert.
	alerts, err = st.QueryAlerts(model.StatusNew, 10)
	if err != nil {
		t.Fatalf("QueryAlerts error: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("QueryAlerts(new) returned %d, want 0", len(alerts))
	}

	if err := st.UpdateAlertStatus("no-such-id", model.StatusResolved, ""); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateAlertStatus(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestStats(t *testing.T) {
	st := newTestStore(t)

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.SystemStatus != "healthy" {
		t.Errorf("SystemStatus = %q, want healthy", stats.SystemStatus)
	}

	for _, sev := range []string{
		model.SeverityCritical, model.SeverityHigh,
		model.SeverityHigh, model.SeverityMedium,
	} {
		err := st.InsertAlert(&model.Alert{
			ID:        model.NewID(),
			EventID:   model.NewID(),
			Severity:  sev,
			Title:     "test alert",
			Status:    model.StatusNew,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("InsertAlert error: %v", err)
		}
	}

	stats, err = st.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalAlerts != 4 {
		t.Errorf("TotalAlerts = %d, want 4", stats.TotalAlerts)
	}
	if stats.CriticalAlerts != 1 || stats.HighAlerts != 2 || stats.MediumAlerts != 1 {
		t.Errorf("severity counts = %d/%d/%d, want 1/2/1",
			stats.CriticalAlerts, stats.HighAlerts, stats.MediumAlerts)
	}
	if stats.SystemStatus != "critical" {
		t.Errorf("SystemStatus = %q, want critical", stats.SystemStatus)
	}
}

func TestMetrics(t *testing.T) {
	st := newTestStore(t)

	m := &model.SystemMetric{
		ID:               model.NewID(),
		CPUPercent:       12.5,
		MemoryPercent:    48.2,
		DiskPercent:      71.0,
		NetworkBytesSent: 1024,
		NetworkBytesRecv: 4096,
		ActiveProcesses:  142,
		CreatedAt:        time.Now().UTC(),
	}
	if err := st.InsertMetric(m); err != nil {
		t.Fatalf("InsertMetric error: %v", err)
	}

	metrics, err := st.RecentMetrics(5)
	if err != nil {
		t.Fatalf("RecentMetrics error: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("RecentMetrics returned %d, want 1", len(metrics))
	}
	if metrics[0].CPUPercent != 12.5 {
		t.Errorf("CPUPercent = %v, want 12.5", metrics[0].CPUPercent)
	}
	if metrics[0].ActiveProcesses != 142 {
		t.Errorf("ActiveProcesses = %d, want 142", metrics[0].ActiveProcesses)
	}
}
