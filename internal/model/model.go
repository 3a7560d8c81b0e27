// internal/model/model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Severity labels, derived from the numeric threat score only.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Event types emitted by collectors.
const (
	EventSuspiciousProcess = "suspicious_process"
	EventNetworkAnomaly    = "network_anomaly"
	EventFileChange        = "file_change"
	EventHighResource      = "high_resource"
	EventPortScan          = "port_scan"
	EventBruteForce        = "brute_force"
	EventUSBDevice         = "usb_device"
)

// Alert workflow states.
const (
	StatusNew           = "new"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusFalsePositive = "false_positive"
)

// ValidStatus reports whether s is a known alert status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Event is a single raw detection record emitted by a collector.
// ThreatScore and Severity are filled in by the analyzer; collectors may
// pre-seed ThreatScore to bias the final score.
type Event struct {
	ID            string         `json:"id"`
	EventType     string         `json:"event_type"`
	Severity      string         `json:"severity"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Source        string         `json:"source"`
	SourceIP      string         `json:"source_ip,omitempty"`
	DestinationIP string         `json:"destination_ip,omitempty"`
	ProcessName   string         `json:"process_name,omitempty"`
	ProcessID     int32          `json:"process_id,omitempty"`
	FilePath      string         `json:"file_path,omitempty"`
	ThreatScore   float64        `json:"threat_score"`
	RawData       map[string]any `json:"raw_data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Alert is a durable record of a confirmed high-score event. Created by
// the analyzer exactly once per qualifying event; only the query API
// mutates it afterwards (status workflow).
type Alert struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Severity    string     `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	ThreatScore float64    `json:"threat_score"`
	ActionTaken string     `json:"action_taken,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// SystemMetric is one system-health sample. Raw telemetry only, never
// routed through the analyzer.
type SystemMetric struct {
	ID               string    `json:"id"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryPercent    float64   `json:"memory_percent"`
	DiskPercent      float64   `json:"disk_percent"`
	NetworkBytesSent uint64    `json:"network_bytes_sent"`
	NetworkBytesRecv uint64    `json:"network_bytes_recv"`
	ActiveProcesses  int       `json:"active_processes"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewID generates a unique record ID.
func NewID() string {
	return uuid.New().String()
}
