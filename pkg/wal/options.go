package wal

import "time"

// DurabilityMode selects how aggressively the Log fsyncs (spec §6).
type DurabilityMode int

const (
	// Immediate fsyncs after every commit marker. Slowest, safest.
	Immediate DurabilityMode = iota
	// GroupCommit batches fsyncs on a timer, trading a bounded window of
	// possible data loss for throughput.
	GroupCommit
	// None leaves fsync scheduling to the OS entirely.
	None
)

func (m DurabilityMode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case GroupCommit:
		return "group_commit"
	case None:
		return "none"
	default:
		return "unknown"
	}
}

// Options configures a Log. The zero value is not valid; use DefaultOptions.
type Options struct {
	// Durability selects the fsync policy.
	Durability DurabilityMode
	// GroupCommitInterval is the fsync period when Durability is
	// GroupCommit. Ignored otherwise.
	GroupCommitInterval time.Duration
	// WriteBufferSize sizes the bufio.Writer in front of the log file.
	WriteBufferSize int
}

// DefaultOptions matches spec §9's resolved default: fsync only at commit
// (GroupCommit coalesces commits that land within the same tick; a
// database opened with SyncOnWrite=true upgrades this to Immediate).
func DefaultOptions() Options {
	return Options{
		Durability:          GroupCommit,
		GroupCommitInterval: 5 * time.Millisecond,
		WriteBufferSize:     64 * 1024,
	}
}
