// internal/collector/network.go
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Port-scan heuristic: both the total established connections and the
// count of distinct remote ports must reach this floor.
const portScanThreshold = 20

// NetworkCollector scans the live connection table for suspicious ports
// and port-scan behavior. No state survives across polls; the scan
// heuristic works on a single poll's snapshot.
type NetworkCollector struct {
	interval time.Duration
	log      zerolog.Logger
}

// NewNetworkCollector creates a network collector.
func NewNetworkCollector(interval time.Duration, log zerolog.Logger) *NetworkCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NetworkCollector{
		interval: interval,
		log:      log.With().Str("collector", "network").Logger(),
	}
}

func (c *NetworkCollector) Name() string            { return "network" }
func (c *NetworkCollector) Interval() time.Duration { return c.interval }

// Collect scans active inet connections. Permission problems reading the
// connection table are a warning, not an error; the poll yields nothing.
func (c *NetworkCollector) Collect(ctx context.Context) ([]model.Event, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot read connection table, need elevated privileges?")
		return nil, nil
	}

	events := c.inspect(conns)
	return events, nil
}

// inspect runs all network checks over one connection snapshot.
func (c *NetworkCollector) inspect(conns []gnet.ConnectionStat) []model.Event {
	var events []model.Event
	var remotePorts []uint32

	for _, conn := range conns {
		if conn.Status != "ESTABLISHED" {
			continue
		}

		if conn.Raddr.Port != 0 {
			remotePorts = append(remotePorts, conn.Raddr.Port)
		}

		if ev := c.checkSuspiciousPort(conn); ev != nil {
			events = append(events, *ev)
		}
		if ev := c.checkSuspiciousListener(conn); ev != nil {
			events = append(events, *ev)
		}
	}

	if ev := c.checkPortScan(remotePorts); ev != nil {
		events = append(events, *ev)
	}

	return events
}

// checkSuspiciousPort flags established connections to a deny-listed
// remote port.
func (c *NetworkCollector) checkSuspiciousPort(conn gnet.ConnectionStat) *model.Event {
	if conn.Raddr.Port == 0 || !suspiciousPorts[conn.Raddr.Port] {
		return nil
	}

	c.log.Warn().Str("remote", fmt.Sprintf("%s:%d", conn.Raddr.IP, conn.Raddr.Port)).
		Msg("connection to suspicious port")

	return &model.Event{
		ID:            model.NewID(),
		EventType:     model.EventNetworkAnomaly,
		Severity:      model.SeverityHigh,
		Title:         fmt.Sprintf("Connection to suspicious port %d", conn.Raddr.Port),
		Description:   fmt.Sprintf("Outgoing connection to %s:%d", conn.Raddr.IP, conn.Raddr.Port),
		Source:        c.Name(),
		SourceIP:      conn.Laddr.IP,
		DestinationIP: conn.Raddr.IP,
		ProcessID:     conn.Pid,
		ThreatScore:   0.8,
		CreatedAt:     time.Now().UTC(),
		RawData: map[string]any{
			"local":  fmt.Sprintf("%s:%d", conn.Laddr.IP, conn.Laddr.Port),
			"remote": fmt.Sprintf("%s:%d", conn.Raddr.IP, conn.Raddr.Port),
			"status": conn.Status,
			"pid":    conn.Pid,
		},
	}
}

// checkSuspiciousListener flags deny-listed ports on the local side of an
// established connection. A single connection can yield both a remote and
// a local finding.
func (c *NetworkCollector) checkSuspiciousListener(conn gnet.ConnectionStat) *model.Event {
	if conn.Laddr.Port == 0 || !suspiciousPorts[conn.Laddr.Port] {
		return nil
	}

	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventNetworkAnomaly,
		Severity:    model.SeverityCritical,
		Title:       fmt.Sprintf("Suspicious port %d is active", conn.Laddr.Port),
		Description: fmt.Sprintf("Local machine active on suspicious port %d", conn.Laddr.Port),
		Source:      c.Name(),
		SourceIP:    conn.Laddr.IP,
		ThreatScore: 0.85,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"local":  fmt.Sprintf("%s:%d", conn.Laddr.IP, conn.Laddr.Port),
			"status": conn.Status,
			"pid":    conn.Pid,
		},
	}
}

// checkPortScan flags a poll whose connection diversity and volume both
// exceed the threshold. Fewer than portScanThreshold total connections
// short-circuits the check regardless of diversity.
func (c *NetworkCollector) checkPortScan(remotePorts []uint32) *model.Event {
	if len(remotePorts) < portScanThreshold {
		return nil
	}

	unique := make(map[uint32]bool, len(remotePorts))
	for _, port := range remotePorts {
		unique[port] = true
	}
	if len(unique) < portScanThreshold {
		return nil
	}

	c.log.Warn().Int("unique_ports", len(unique)).Msg("possible port scan")

	return &model.Event{
		ID:          model.NewID(),
		EventType:   model.EventPortScan,
		Severity:    model.SeverityHigh,
		Title:       fmt.Sprintf("Possible port scan detected (%d ports)", len(unique)),
		Description: fmt.Sprintf("System connecting to %d unique remote ports", len(unique)),
		Source:      c.Name(),
		ThreatScore: 0.7,
		CreatedAt:   time.Now().UTC(),
		RawData: map[string]any{
			"unique_ports":      len(unique),
			"total_connections": len(remotePorts),
		},
	}
}
