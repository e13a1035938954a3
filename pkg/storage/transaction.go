package storage

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/tegdb/tegdb/pkg/btree"
	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/types"
	"github.com/tegdb/tegdb/pkg/wal"
)

// undoEntry records a key's state immediately before a write, so Rollback
// can restore it (spec §4.4).
type undoEntry struct {
	key      types.ByteKey
	hadValue bool
	prior    *types.SharedValue
}

// Transaction is a write-batching layer over one Engine (spec §4.4).
// Writes apply to the KeyMap immediately — reads see their own
// uncommitted writes because there is nowhere else for them to be.
type Transaction struct {
	mu        sync.Mutex
	engine    *Engine
	undoLog   []undoEntry
	finalized bool
}

// Get reads straight through to the KeyMap.
func (t *Transaction) Get(key types.ByteKey) (*types.SharedValue, bool) {
	return t.engine.keyMap.Get(key)
}

// Scan returns a cursor over the KeyMap starting at start.
func (t *Transaction) Scan(start types.ByteKey) *btree.Cursor {
	c := btree.NewCursor(t.engine.keyMap)
	c.Seek(start)
	return c
}

// Set captures the prior value into the undo log, applies the write to
// the KeyMap, and appends the entry to the Log without flushing.
func (t *Transaction) Set(key types.ByteKey, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized {
		return &tegerrors.TransactionFinalizedError{}
	}
	if err := t.engine.checkSizeLimits(key, value); err != nil {
		return err
	}

	prior, existed := t.engine.keyMap.Get(key)
	t.undoLog = append(t.undoLog, undoEntry{key: key, hadValue: existed, prior: prior.Retain()})

	sv := types.NewSharedValue(value)
	if err := t.engine.keyMap.Replace(key, sv); err != nil {
		return errors.Wrap(err, "apply set to keymap")
	}

	if _, err := t.engine.log.Append([]byte(key), value); err != nil {
		return errors.Wrap(err, "append wal entry")
	}
	n := int64(wal.LengthPrefixSize + len(key) + len(value))
	t.engine.metrics.addLogBytes(n)
	t.trackBytes(n)
	return nil
}

// Delete captures the prior value, applies a tombstone to the KeyMap,
// and appends the empty-value entry to the Log.
func (t *Transaction) Delete(key types.ByteKey) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized {
		return false, &tegerrors.TransactionFinalizedError{}
	}

	prior, existed := t.engine.keyMap.Get(key)
	t.undoLog = append(t.undoLog, undoEntry{key: key, hadValue: existed, prior: prior.Retain()})

	if existed {
		t.engine.keyMap.Remove(key)
	}

	if _, err := t.engine.log.Append([]byte(key), nil); err != nil {
		return existed, errors.Wrap(err, "append wal tombstone")
	}
	n := int64(wal.LengthPrefixSize + len(key))
	t.engine.metrics.addLogBytes(n)
	t.trackBytes(n)
	return existed, nil
}

func (t *Transaction) trackBytes(n int64) {
	t.engine.mu.Lock()
	t.engine.bytesSinceCompact += n
	t.engine.mu.Unlock()
}

// Commit appends a commit marker, flushes per the durability policy,
// clears the undo log and finalizes the transaction (spec §4.4/§4.9).
func (t *Transaction) Commit() error {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return &tegerrors.TransactionFinalizedError{}
	}

	if _, err := t.engine.log.AppendCommitMarker(); err != nil {
		t.mu.Unlock()
		return errors.Wrap(err, "append commit marker")
	}
	t.engine.metrics.addLogBytes(int64(wal.LengthPrefixSize + len(wal.CommitMarkerKey)))

	if t.engine.opts.SyncOnWrite || t.engine.opts.Durability == wal.Immediate {
		if err := t.engine.log.Sync(); err != nil {
			t.mu.Unlock()
			return errors.Wrap(err, "sync on commit")
		}
	}

	for _, entry := range t.undoLog {
		entry.prior.Release()
	}
	t.undoLog = nil
	t.finalized = true
	t.mu.Unlock()

	t.engine.release(t)
	t.engine.metrics.incCommitted()

	if err := t.engine.maybeCompact(); err != nil {
		return err
	}
	return nil
}

// Rollback replays the undo log in reverse, restoring prior KeyMap state,
// then appends the reversing entries to the Log followed by a commit
// marker (spec §9 decision 1), so the log's replayed state matches memory.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return &tegerrors.TransactionFinalizedError{}
	}
	defer func() {
		t.finalized = true
		t.mu.Unlock()
		t.engine.release(t)
		t.engine.metrics.incRolledBack()
	}()

	for i := len(t.undoLog) - 1; i >= 0; i-- {
		entry := t.undoLog[i]

		if entry.hadValue {
			if err := t.engine.keyMap.Replace(entry.key, entry.prior); err != nil {
				return errors.Wrap(err, "restore prior value during rollback")
			}
			if _, err := t.engine.log.Append([]byte(entry.key), entry.prior.Bytes()); err != nil {
				return errors.Wrap(err, "append reversing wal entry")
			}
			entry.prior.Release()
		} else {
			t.engine.keyMap.Remove(entry.key)
			if _, err := t.engine.log.Append([]byte(entry.key), nil); err != nil {
				return errors.Wrap(err, "append reversing wal tombstone")
			}
		}
	}

	if _, err := t.engine.log.AppendCommitMarker(); err != nil {
		return errors.Wrap(err, "append rollback commit marker")
	}

	t.undoLog = nil
	return nil
}

// Drop implements spec §4.9's "drop without commit performs rollback":
// call from a defer immediately after Begin to guarantee cleanup on any
// early return, mirroring the common Go transaction idiom.
func (t *Transaction) Drop() {
	t.mu.Lock()
	finalized := t.finalized
	t.mu.Unlock()
	if !finalized {
		t.Rollback()
	}
}
