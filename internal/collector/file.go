// internal/collector/file.go
package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Digest value stored when a file cannot be read. Keeps the file tracked
// so a later successful read registers as a modification.
const unknownDigest = "unknown"

// FileCollector watches a fixed set of directories (non-recursive) for new
// files with suspicious extensions and for content changes to any file it
// already tracks. The digest map is private to this instance and lives for
// the process lifetime only.
type FileCollector struct {
	interval   time.Duration
	watchPaths []string
	log        zerolog.Logger

	mu    sync.Mutex
	known map[string]string // absolute path -> content digest
}

// NewFileCollector creates a file collector. Empty watchPaths gets the
// defaults: the user's download directory and the platform temp directory.
func NewFileCollector(interval time.Duration, watchPaths []string, log zerolog.Logger) *FileCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if len(watchPaths) == 0 {
		watchPaths = defaultWatchPaths()
	}
	return &FileCollector{
		interval:   interval,
		watchPaths: watchPaths,
		known:      make(map[string]string),
		log:        log.With().Str("collector", "file").Logger(),
	}
}

func defaultWatchPaths() []string {
	paths := []string{os.TempDir()}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append([]string{filepath.Join(home, "Downloads")}, paths...)
	}
	return paths
}

func (c *FileCollector) Name() string            { return "file" }
func (c *FileCollector) Interval() time.Duration { return c.interval }

// Collect scans every watched directory. Unreadable directories are
// skipped with a warning. The digest map is guarded so a manual scan can
// run concurrently with the poll loop.
func (c *FileCollector) Collect(ctx context.Context) ([]model.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []model.Event

	for _, dir := range c.watchPaths {
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		default:
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				c.log.Warn().Str("dir", dir).Err(err).Msg("cannot scan directory")
			}
			continue
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			path := filepath.Join(dir, entry.Name())

			if ev := c.checkNewSuspicious(path); ev != nil {
				events = append(events, *ev)
			}
			if ev := c.checkModified(path); ev != nil {
				events = append(events, *ev)
			}
		}
	}

	return events, nil
}

// checkNewSuspicious flags a file with a deny-listed extension the first
// time it is seen. Tracking the digest suppresses repeat alerts for the
// same path.
func (c *FileCollector) checkNewSuspicious(path string) *model.Event {
	ext := strings.ToLower(filepath.Ext(path))
	if !suspiciousExtensions[ext] {
		return nil
	}
	if _, tracked := c.known[path]; tracked {
		return nil
	}

	c.known[path] = digestFile(path)
	c.log.Warn().Str("path", path).Msg("suspicious file found")

	var size uint64
	if info, err := os.Stat(path); err == nil {
		size = uint64(info.Size())
	}

	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventFileChange,
		Severity:    model.SeverityHigh,
		Title:       fmt.Sprintf("Suspicious file found: %s", filepath.Base(path)),
		Description: fmt.Sprintf("File with suspicious extension %q found at %s", ext, path),
		Source:      c.Name(),
		FilePath:    path,
		ThreatScore: 0.7,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"filename":  filepath.Base(path),
			"extension": ext,
			"size":      humanize.Bytes(size),
			"directory": filepath.Dir(path),
			"sha256":    c.known[path],
		},
	}
}

// checkModified flags a tracked file whose digest changed since the last
// poll, and updates the stored digest.
func (c *FileCollector) checkModified(path string) *model.Event {
	old, tracked := c.known[path]
	if !tracked {
		return nil
	}

	current := digestFile(path)
	if current == old {
		return nil
	}

	c.known[path] = current
	c.log.Warn().Str("path", path).Msg("tracked file modified")

	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventFileChange,
		Severity:    model.SeverityMedium,
		Title:       fmt.Sprintf("File modified: %s", filepath.Base(path)),
		Description: fmt.Sprintf("Content digest changed for %s", path),
		Source:      c.Name(),
		FilePath:    path,
		ThreatScore: 0.5,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"filename": filepath.Base(path),
			"old_hash": old,
			"new_hash": current,
		},
	}
}

// digestFile returns the SHA-256 hex digest of a file, or the unknown
// sentinel if the file cannot be read.
func digestFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return unknownDigest
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return unknownDigest
	}
	return hex.EncodeToString(h.Sum(nil))
}
