// internal/collector/collector.go
package collector

import (
	"context"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Collector samples one category of host state per poll and emits zero or
// more raw events. Implementations own whatever private state they need to
// detect changes across polls; no state is shared between collectors.
type Collector interface {
	// Name identifies the collector in event records and logs.
	Name() string

	// Interval is the delay between poll cycles.
	Interval() time.Duration

	// Collect gathers one batch of raw events. Individual items that
	// cannot be read (vanished process, permission denied) are skipped,
	// not errors.
	Collect(ctx context.Context) ([]model.Event, error)
}

// Ports commonly used by remote-access tools and backdoors.
var suspiciousPorts = map[uint32]bool{
	4444:  true,
	5555:  true,
	6666:  true,
	1337:  true,
	31337: true,
	12345: true,
	9999:  true,
}

// Known offensive tool names, matched as case-insensitive substrings of
// process names.
var suspiciousProcesses = []string{
	"mimikatz", "keylogger", "pwdump",
	"lazagne", "meterpreter", "netcat",
}

// File extensions worth flagging when they appear in watched directories.
var suspiciousExtensions = map[string]bool{
	".exe": true,
	".bat": true,
	".ps1": true,
	".vbs": true,
	".dll": true,
	".scr": true,
}
