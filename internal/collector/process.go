// internal/collector/process.go
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/kestrelhq/kestrel/internal/model"
)

// ProcessCollector scans the live process table for known offensive tool
// names and resource hogs. Stateless per poll: a persistent malicious
// process re-alerts every interval.
type ProcessCollector struct {
	interval     time.Duration
	cpuThreshold float64
	memThreshold float64
	log          zerolog.Logger
}

// procSample is one process observation, decoupled from gopsutil so the
// checks stay pure and testable.
type procSample struct {
	pid  int32
	name string
	cpu  float64
	mem  float64
}

// NewProcessCollector creates a process collector. Zero thresholds get
// the defaults (90% CPU, 85% memory).
func NewProcessCollector(interval time.Duration, cpuThreshold, memThreshold float64, log zerolog.Logger) *ProcessCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if cpuThreshold <= 0 {
		cpuThreshold = 90.0
	}
	if memThreshold <= 0 {
		memThreshold = 85.0
	}
	return &ProcessCollector{
		interval:     interval,
		cpuThreshold: cpuThreshold,
		memThreshold: memThreshold,
		log:          log.With().Str("collector", "process").Logger(),
	}
}

func (c *ProcessCollector) Name() string            { return "process" }
func (c *ProcessCollector) Interval() time.Duration { return c.interval }

// Collect scans all running processes. Processes that vanish mid-scan or
// deny access are skipped silently.
func (c *ProcessCollector) Collect(ctx context.Context) ([]model.Event, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var events []model.Event
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpu, _ := p.CPUPercentWithContext(ctx)
		mem, _ := p.MemoryPercentWithContext(ctx)

		sample := procSample{pid: p.Pid, name: name, cpu: cpu, mem: float64(mem)}

		if ev := c.checkSuspiciousName(sample); ev != nil {
			c.log.Warn().Str("process", name).Int32("pid", p.Pid).Msg("suspicious process detected")
			events = append(events, *ev)
		}
		if ev := c.checkHighCPU(sample); ev != nil {
			events = append(events, *ev)
		}
		if ev := c.checkHighMemory(sample); ev != nil {
			events = append(events, *ev)
		}
	}

	return events, nil
}

// checkSuspiciousName matches the process name against the deny list.
func (c *ProcessCollector) checkSuspiciousName(p procSample) *model.Event {
	lower := strings.ToLower(p.name)
	for _, bad := range suspiciousProcesses {
		if strings.Contains(lower, bad) {
			return &model.Event{
				ID:          model.NewID(),
				EventType:   model.EventSuspiciousProcess,
				Severity:    model.SeverityCritical,
				Title:       fmt.Sprintf("Suspicious process detected: %s", p.name),
				Description: fmt.Sprintf("Process %q matches known threat tool %q", p.name, bad),
				Source:      c.Name(),
				ProcessName: p.name,
				ProcessID:   p.pid,
				ThreatScore: 0.9,
				CreatedAt:   time.Now().UTC(),
				RawData: map[string]any{
					"name":        p.name,
					"pid":         p.pid,
					"matched":     bad,
					"cpu_percent": p.cpu,
				},
			}
		}
	}
	return nil
}

// checkHighCPU flags processes above the CPU threshold.
func (c *ProcessCollector) checkHighCPU(p procSample) *model.Event {
	if p.cpu <= c.cpuThreshold {
		return nil
	}
	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventHighResource,
		Severity:    model.SeverityMedium,
		Title:       fmt.Sprintf("High CPU usage: %s (%.1f%%)", p.name, p.cpu),
		Description: fmt.Sprintf("Process %q using %.1f%% CPU", p.name, p.cpu),
		Source:      c.Name(),
		ProcessName: p.name,
		ProcessID:   p.pid,
		ThreatScore: 0.4,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"name":        p.name,
			"pid":         p.pid,
			"cpu_percent": p.cpu,
		},
	}
}

// checkHighMemory flags processes above the memory threshold.
func (c *ProcessCollector) checkHighMemory(p procSample) *model.Event {
	if p.mem <= c.memThreshold {
		return nil
	}
	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventHighResource,
		Severity:    model.SeverityMedium,
		Title:       fmt.Sprintf("High memory usage: %s (%.1f%%)", p.name, p.mem),
		Description: fmt.Sprintf("Process %q using %.1f%% memory", p.name, p.mem),
		Source:      c.Name(),
		ProcessName: p.name,
		ProcessID:   p.pid,
		ThreatScore: 0.3,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"name":           p.name,
			"pid":            p.pid,
			"memory_percent": p.mem,
		},
	}
}
