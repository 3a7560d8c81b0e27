// internal/collector/system.go
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/kestrelhq/kestrel/internal/model"
)

// SystemCollector samples overall host health. It produces one metric
// record per poll and bypasses the analyzer entirely: the stream is raw
// telemetry, not scored events, so it does not implement Collector.
type SystemCollector struct {
	interval time.Duration
	log      zerolog.Logger
}

// NewSystemCollector creates a system-health collector.
func NewSystemCollector(interval time.Duration, log zerolog.Logger) *SystemCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SystemCollector{
		interval: interval,
		log:      log.With().Str("collector", "system").Logger(),
	}
}

func (c *SystemCollector) Name() string            { return "system" }
func (c *SystemCollector) Interval() time.Duration { return c.interval }

// Collect samples current host metrics.
func (c *SystemCollector) Collect(ctx context.Context) (*model.SystemMetric, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}

	metric := &model.SystemMetric{
		ID:            model.NewID(),
		CPUPercent:    cpuPercent,
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
		CreatedAt:     time.Now().UTC(),
	}

	// Network counters and process count are best-effort.
	if counters, err := gnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		metric.NetworkBytesSent = counters[0].BytesSent
		metric.NetworkBytesRecv = counters[0].BytesRecv
	}
	if pids, err := process.PidsWithContext(ctx); err == nil {
		metric.ActiveProcesses = len(pids)
	}

	c.log.Debug().
		Str("cpu", fmt.Sprintf("%.1f%%", metric.CPUPercent)).
		Str("mem", fmt.Sprintf("%.1f%%", metric.MemoryPercent)).
		Str("disk", fmt.Sprintf("%.1f%%", metric.DiskPercent)).
		Str("net_sent", humanize.Bytes(metric.NetworkBytesSent)).
		Str("net_recv", humanize.Bytes(metric.NetworkBytesRecv)).
		Int("processes", metric.ActiveProcesses).
		Msg("system sample")

	return metric, nil
}
