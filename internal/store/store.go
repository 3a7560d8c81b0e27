// internal/store/store.go
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection. Every write creates a new row;
// nothing in the pipeline mutates prior rows (alert status updates belong
// to the query API).
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	source TEXT NOT NULL,
	source_ip TEXT,
	destination_ip TEXT,
	process_name TEXT,
	process_id INTEGER,
	file_path TEXT,
	threat_score REAL NOT NULL DEFAULT 0,
	raw_data TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'new',
	threat_score REAL NOT NULL DEFAULT 0,
	action_taken TEXT,
	created_at TEXT NOT NULL,
	resolved_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);

CREATE TABLE IF NOT EXISTS system_metrics (
	id TEXT PRIMARY KEY,
	cpu_percent REAL NOT NULL,
	memory_percent REAL NOT NULL,
	disk_percent REAL NOT NULL,
	network_bytes_sent INTEGER NOT NULL DEFAULT 0,
	network_bytes_recv INTEGER NOT NULL DEFAULT 0,
	active_processes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_created ON system_metrics(created_at);
`

// New opens or creates the SQLite database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrent access from the collector loops.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent stores one security event.
func (s *Store) InsertEvent(ev *model.Event) error {
	var rawJSON []byte
	if ev.RawData != nil {
		var err error
		rawJSON, err = json.Marshal(ev.RawData)
		if err != nil {
			return fmt.Errorf("marshal raw_data: %w", err)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, event_type, severity, title, description, source,
			source_ip, destination_ip, process_name, process_id, file_path,
			threat_score, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.EventType, ev.Severity, ev.Title, nullStr(ev.Description), ev.Source,
		nullStr(ev.SourceIP), nullStr(ev.DestinationIP), nullStr(ev.ProcessName),
		nullInt32(ev.ProcessID), nullStr(ev.FilePath),
		ev.ThreatScore, nullBytes(rawJSON), ev.CreatedAt.Format(time.RFC3339))

	return err
}

// InsertAlert stores one alert.
func (s *Store) InsertAlert(a *model.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, event_id, severity, title, description, status,
			threat_score, action_taken, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.EventID, a.Severity, a.Title, nullStr(a.Description), a.Status,
		a.ThreatScore, nullStr(a.ActionTaken), a.CreatedAt.Format(time.RFC3339))

	return err
}

// InsertMetric stores one system-health sample.
func (s *Store) InsertMetric(m *model.SystemMetric) error {
	_, err := s.db.Exec(`
		INSERT INTO system_metrics (id, cpu_percent, memory_percent, disk_percent,
			network_bytes_sent, network_bytes_recv, active_processes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.CPUPercent, m.MemoryPercent, m.DiskPercent,
		m.NetworkBytesSent, m.NetworkBytesRecv, m.ActiveProcesses,
		m.CreatedAt.Format(time.RFC3339))

	return err
}

// QueryEvents returns the most recent events.
func (s *Store) QueryEvents(limit int) ([]model.Event, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, severity, title, description, source,
			source_ip, destination_ip, process_name, process_id, file_path,
			threat_score, raw_data, created_at
		FROM events
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEvent returns a single event by ID. Returns sql.ErrNoRows if absent.
func (s *Store) GetEvent(id string) (*model.Event, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, severity, title, description, source,
			source_ip, destination_ip, process_name, process_id, file_path,
			threat_score, raw_data, created_at
		FROM events
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, sql.ErrNoRows
	}
	return &events[0], nil
}

// QueryAlerts returns recent alerts, optionally filtered by status.
func (s *Store) QueryAlerts(status string, limit int) ([]model.Alert, error) {
	query := `
		SELECT id, event_id, severity, title, description, status,
			threat_score, action_taken, created_at, resolved_at
		FROM alerts
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// UpdateAlertStatus transitions an alert's workflow status and optionally
// records the action taken. Resolving stamps resolved_at. Returns
// sql.ErrNoRows if the alert does not exist.
func (s *Store) UpdateAlertStatus(id, status, actionTaken string) error {
	var resolvedAt any
	if status == model.StatusResolved {
		resolvedAt = time.Now().UTC().Format(time.RFC3339)
	}

	res, err := s.db.Exec(`
		UPDATE alerts
		SET status = ?,
			action_taken = COALESCE(?, action_taken),
			resolved_at = COALESCE(?, resolved_at)
		WHERE id = ?
	`, status, nullStr(actionTaken), resolvedAt, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DashboardStats summarizes the store for the dashboard endpoint.
type DashboardStats struct {
	TotalEvents    int    `json:"total_events"`
	TotalAlerts    int    `json:"total_alerts"`
	CriticalAlerts int    `json:"critical_alerts"`
	HighAlerts     int    `json:"high_alerts"`
	MediumAlerts   int    `json:"medium_alerts"`
	SystemStatus   string `json:"system_status"`
}

// Stats computes dashboard counters. System status is critical if any
// critical alert exists, warning if any high alert exists, else healthy.
func (s *Store) Stats() (*DashboardStats, error) {
	stats := &DashboardStats{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&stats.TotalEvents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM alerts GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		switch severity {
		case model.SeverityCritical:
			stats.CriticalAlerts = count
		case model.SeverityHigh:
			stats.HighAlerts = count
		case model.SeverityMedium:
			stats.MediumAlerts = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case stats.CriticalAlerts > 0:
		stats.SystemStatus = "critical"
	case stats.HighAlerts > 0:
		stats.SystemStatus = "warning"
	default:
		stats.SystemStatus = "healthy"
	}

	return stats, nil
}

// RecentMetrics returns the most recent system-health samples.
func (s *Store) RecentMetrics(limit int) ([]model.SystemMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, cpu_percent, memory_percent, disk_percent,
			network_bytes_sent, network_bytes_recv, active_processes, created_at
		FROM system_metrics
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []model.SystemMetric
	for rows.Next() {
		var m model.SystemMetric
		var created string
		err := rows.Scan(&m.ID, &m.CPUPercent, &m.MemoryPercent, &m.DiskPercent,
			&m.NetworkBytesSent, &m.NetworkBytesRecv, &m.ActiveProcesses, &created)
		if err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, created)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var created string
		var description, sourceIP, destIP, procName, filePath, rawJSON sql.NullString
		var procID sql.NullInt32

		err := rows.Scan(&ev.ID, &ev.EventType, &ev.Severity, &ev.Title,
			&description, &ev.Source, &sourceIP, &destIP, &procName, &procID,
			&filePath, &ev.ThreatScore, &rawJSON, &created)
		if err != nil {
			return nil, err
		}

		ev.Description = description.String
		ev.SourceIP = sourceIP.String
		ev.DestinationIP = destIP.String
		ev.ProcessName = procName.String
		ev.ProcessID = procID.Int32
		ev.FilePath = filePath.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339, created)
		if rawJSON.Valid {
			json.Unmarshal([]byte(rawJSON.String), &ev.RawData)
		}

		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var created string
		var description, actionTaken, resolved sql.NullString

		err := rows.Scan(&a.ID, &a.EventID, &a.Severity, &a.Title, &description,
			&a.Status, &a.ThreatScore, &actionTaken, &created, &resolved)
		if err != nil {
			return nil, err
		}

		a.Description = description.String
		a.ActionTaken = actionTaken.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		if resolved.Valid {
			t, err := time.Parse(time.RFC3339, resolved.String)
			if err == nil {
				a.ResolvedAt = &t
			}
		}

		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt32(n int32) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
