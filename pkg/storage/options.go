package storage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tegdb/tegdb/pkg/wal"
)

// Options configures an Engine (spec §6's external configuration surface).
// Loading these from a config file or environment is an external
// collaborator's job — Options is only the typed target it populates.
type Options struct {
	// MaxKeySize bounds a row key (spec §4.3 default: 1 KiB).
	MaxKeySize int
	// MaxValueSize bounds a row value (spec §4.3 default: 256 KiB).
	MaxValueSize int
	// SyncOnWrite upgrades the durability policy to fsync on every commit,
	// regardless of the configured DurabilityMode (spec §9 decision 2).
	SyncOnWrite bool
	// AutoCompact triggers Log.Compact automatically once the thresholds
	// below are crossed after a commit.
	AutoCompact bool
	// CompactAbsoluteBytes is threshold A: bytes written since the last
	// compaction (spec §4.1 default: 10 MiB).
	CompactAbsoluteBytes int64
	// CompactFragmentationRatio is threshold R: total bytes / live bytes
	// (spec §4.1 default: 2.0).
	CompactFragmentationRatio float64
	// CompactMinDeltaBytes is threshold D: a floor on bytes written since
	// the last compaction, so compaction never thrashes on a nearly-empty
	// log (spec §4.1 default: 2 MiB).
	CompactMinDeltaBytes int64
	// Durability is the Log's fsync policy absent SyncOnWrite.
	Durability wal.DurabilityMode
	// Metrics, if non-nil, receives engine counters (bytes written,
	// compactions run, transactions committed/rolled back). Optional: a
	// nil registry disables metrics entirely.
	Metrics *prometheus.Registry
}

// DefaultOptions mirrors the teacher's wal.DefaultOptions() constructor
// shape, populated with spec §4.1/§4.3's stated defaults.
func DefaultOptions() Options {
	return Options{
		MaxKeySize:                1024,
		MaxValueSize:              256 * 1024,
		SyncOnWrite:               false,
		AutoCompact:               true,
		CompactAbsoluteBytes:      10 * 1024 * 1024,
		CompactFragmentationRatio: 2.0,
		CompactMinDeltaBytes:      2 * 1024 * 1024,
		Durability:                wal.GroupCommit,
		Metrics:                   nil,
	}
}
