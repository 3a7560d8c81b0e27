// test/integration_test.go
package test

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelhq/kestrel/internal/api"
	"github.com/kestrelhq/kestrel/internal/collector"
	"github.com/kestrelhq/kestrel/internal/engine"
	"github.com/kestrelhq/kestrel/internal/model"
)

// TestIntegrationFileDetectionFlow plants a suspicious file, runs the
// engine with a real file collector, and reads the resulting event and
// alert back through the HTTP API.
func TestIntegrationFileDetectionFlow(t *testing.T) {
	tempDir := t.TempDir()
	watchDir := filepath.Join(tempDir, "downloads")
	if err := os.Mkdir(watchDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(watchDir, "payload.exe"), []byte("MZ"), 0644); err != nil {
		t.Fatal(err)
	}

	collectors := []collector.Collector{
		collector.NewFileCollector(30*time.Millisecond, []string{watchDir}, zerolog.Nop()),
	}
	eng := engine.New(filepath.Join(tempDir, "kestrel.db"), collectors, nil, zerolog.Nop())

	if err := eng.Initialize(); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer eng.Stop()

	srv := api.NewServer(":0", eng, zerolog.Nop())
	handler := srv.Handler()

	// Wait for the collector to pick the file up.
	var events []model.Event
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/events", nil))
		if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if len(events) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.EventType != model.EventFileChange {
		t.Errorf("EventType = %q, want %q", ev.EventType, model.EventFileChange)
	}
	if ev.Source != "file" {
		t.Errorf("Source = %q, want file", ev.Source)
	}
	// file_change base 0.5 averaged with the collector's 0.7 seed.
	if ev.ThreatScore != 0.6 {
		t.Errorf("ThreatScore = %v, want 0.6", ev.ThreatScore)
	}

	// Score 0.6 clears the alert threshold.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/alerts", nil))
	var alerts []model.Alert
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].EventID != ev.ID {
		t.Errorf("alert EventID = %q, want %q", alerts[0].EventID, ev.ID)
	}

	// The repeat-poll suppression holds while the engine keeps running.
	time.Sleep(100 * time.Millisecond)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/events", nil))
	events = nil
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events after more polls = %d, want still 1", len(events))
	}

	// Dashboard reflects the store.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/dashboard", nil))
	var stats struct {
		TotalEvents  int    `json:"total_events"`
		TotalAlerts  int    `json:"total_alerts"`
		SystemStatus string `json:"system_status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if stats.TotalEvents != 1 || stats.TotalAlerts != 1 {
		t.Errorf("dashboard = %d events / %d alerts, want 1/1", stats.TotalEvents, stats.TotalAlerts)
	}
	if stats.SystemStatus != "warning" {
		t.Errorf("SystemStatus = %q, want warning", stats.SystemStatus)
	}
}
