// internal/collector/file_test.go
package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelhq/kestrel/internal/model"
)

func TestFileCollectorNewSuspiciousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dropper.exe")
	if err := os.WriteFile(path, []byte("MZ payload"), 0644); err != nil {
		t.Fatal(err)
	}
	// Benign extension is ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewFileCollector(time.Second, []string{dir}, zerolog.Nop())

	events, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Collect returned %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.EventType != model.EventFileChange {
		t.Errorf("EventType = %q, want %q", ev.EventType, model.EventFileChange)
	}
	if ev.Severity != model.SeverityHigh {
		t.Errorf("Severity = %q, want high", ev.Severity)
	}
	if ev.ThreatScore != 0.7 {
		t.Errorf("ThreatScore = %v, want 0.7", ev.ThreatScore)
	}
	if ev.FilePath != path {
		t.Errorf("FilePath = %q, want %q", ev.FilePath, path)
	}
}

func TestFileCollectorDedupAndModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loader.ps1")
	if err := os.WriteFile(path, []byte("Write-Host hi"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewFileCollector(time.Second, []string{dir}, zerolog.Nop())

	// First poll: exactly one "new suspicious file" finding.
	events, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("poll 1 returned %d events, want 1", len(events))
	}

	// Second poll, unchanged content: nothing.
	events, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("poll 2 returned %d events, want 0", len(events))
	}

	// Third poll after modification: exactly one "modified" finding.
	if err := os.WriteFile(path, []byte("Invoke-Expression $x"), 0644); err != nil {
		t.Fatal(err)
	}
	events, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("poll 3 returned %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Severity != model.SeverityMedium {
		t.Errorf("Severity = %q, want medium", ev.Severity)
	}
	if ev.ThreatScore != 0.5 {
		t.Errorf("ThreatScore = %v, want 0.5", ev.ThreatScore)
	}
	oldHash, newHash := ev.RawData["old_hash"].(string), ev.RawData["new_hash"].(string)
	if oldHash == newHash {
		t.Error("old_hash == new_hash, want different digests")
	}
	if c.known[path] != newHash {
		t.Errorf("stored digest = %q, want %q", c.known[path], newHash)
	}

	// Fourth poll: modification was absorbed, nothing new.
	events, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("poll 4 returned %d events, want 0", len(events))
	}
}

func TestFileCollectorMissingDirectory(t *testing.T) {
	c := NewFileCollector(time.Second, []string{"/no/such/dir/kestrel-test"}, zerolog.Nop())

	events, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Collect returned %d events, want 0", len(events))
	}
}

func TestDigestUnreadableFile(t *testing.T) {
	if got := digestFile("/no/such/file"); got != unknownDigest {
		t.Errorf("digestFile = %q, want %q", got, unknownDigest)
	}
}
