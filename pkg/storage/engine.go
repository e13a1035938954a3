// Package storage implements TegDB's Engine (spec §4.3): the component
// that owns one Log and one KeyMap and exposes get/set/delete/scan/begin
// to the executor above it. Tables share a single KeyMap, namespaced by
// key prefix (spec §3) — there is one Log and one B+Tree per open
// database file, not one per table.
package storage

import (
	"bytes"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/tegdb/tegdb/pkg/btree"
	tegerrors "github.com/tegdb/tegdb/pkg/errors"
	"github.com/tegdb/tegdb/pkg/types"
	"github.com/tegdb/tegdb/pkg/wal"
)

// btreeDegree is the B+Tree's minimum degree (same constant the teacher
// repo uses for its index trees).
const btreeDegree = 64

// Engine owns the Log and KeyMap backing one TegDB database file.
type Engine struct {
	path    string
	log     *wal.Log
	keyMap  *btree.BPlusTree
	catalog *Catalog
	opts    Options
	metrics *metrics

	mu        sync.Mutex // guards activeTxn and compaction bookkeeping
	activeTxn *Transaction

	bytesSinceCompact int64
}

// Open opens (or creates) the database file at path, recovers the KeyMap
// from the Log, and warms the schema cache (spec §4.6: "decode failures
// are fatal to open").
func Open(path string, opts Options) (*Engine, error) {
	walOpts := wal.DefaultOptions()
	walOpts.Durability = opts.Durability
	if opts.SyncOnWrite {
		walOpts.Durability = wal.Immediate
	}

	log, entries, err := wal.Open(path, walOpts)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		path:    path,
		log:     log,
		keyMap:  btree.NewTree(btreeDegree),
		catalog: newCatalog(),
		opts:    opts,
		metrics: newMetrics(opts.Metrics),
	}

	for _, entry := range entries {
		if err := e.applyRecoveredEntry(entry); err != nil {
			log.Close()
			return nil, errors.Wrap(err, "apply recovered wal entry")
		}
	}

	return e, nil
}

// applyRecoveredEntry folds one replayed (key, value) pair into the
// KeyMap and, for schema records, the catalog cache.
func (e *Engine) applyRecoveredEntry(entry wal.Entry) error {
	key := types.ByteKey(entry.Key)

	if len(entry.Value) == 0 {
		e.keyMap.Remove(key)
		if bytes.HasPrefix(entry.Key, []byte(wal.SchemaKeyPrefix)) {
			e.catalog.Remove(string(entry.Key[len(wal.SchemaKeyPrefix):]))
		}
		return nil
	}

	sv := types.NewSharedValue(entry.Value)
	if err := e.keyMap.Replace(key, sv); err != nil {
		return err
	}

	if bytes.HasPrefix(entry.Key, []byte(wal.SchemaKeyPrefix)) {
		table := string(entry.Key[len(wal.SchemaKeyPrefix):])
		if err := e.catalog.warm(table, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// Catalog returns the engine's schema cache.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Close flushes and releases the log file.
func (e *Engine) Close() error {
	return e.log.Close()
}

// Get is a direct, non-transactional KeyMap lookup.
func (e *Engine) Get(key types.ByteKey) (*types.SharedValue, bool) {
	return e.keyMap.Get(key)
}

// Scan returns a cursor positioned at the first key >= start, in key order.
// The cursor has no upper bound: it runs to the end of the KeyMap, so the
// caller stops at its own end key.
func (e *Engine) Scan(start types.ByteKey) *btree.Cursor {
	c := btree.NewCursor(e.keyMap)
	c.Seek(start)
	return c
}

// checkSizeLimits enforces spec §4.3's max_key_size/max_value_size.
func (e *Engine) checkSizeLimits(key, value []byte) error {
	if e.opts.MaxKeySize > 0 && len(key) > e.opts.MaxKeySize {
		return &tegerrors.KeyTooLargeError{Size: len(key), Max: e.opts.MaxKeySize}
	}
	if e.opts.MaxValueSize > 0 && len(value) > e.opts.MaxValueSize {
		return &tegerrors.ValueTooLargeError{Size: len(value), Max: e.opts.MaxValueSize}
	}
	return nil
}

// Set is the autocommit convenience wrapper: begin, write, commit.
func (e *Engine) Set(key types.ByteKey, value []byte) error {
	txn, err := e.Begin()
	if err != nil {
		return err
	}
	if err := txn.Set(key, value); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()
}

// Delete is the autocommit convenience wrapper around Transaction.Delete.
func (e *Engine) Delete(key types.ByteKey) (bool, error) {
	txn, err := e.Begin()
	if err != nil {
		return false, err
	}
	existed, err := txn.Delete(key)
	if err != nil {
		txn.Rollback()
		return false, err
	}
	return existed, txn.Commit()
}

// Begin borrows the Engine exclusively for one Transaction, per spec §9's
// "at most one live Transaction" resolution.
func (e *Engine) Begin() (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeTxn != nil {
		return nil, &tegerrors.TransactionAlreadyActiveError{}
	}

	txn := &Transaction{engine: e}
	e.activeTxn = txn
	return txn, nil
}

// release clears the engine's active-transaction slot. Called by
// Transaction.Commit/Rollback.
func (e *Engine) release(txn *Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeTxn == txn {
		e.activeTxn = nil
	}
}

// maybeCompact triggers Log.Compact when all three spec §4.1 thresholds
// (A, R, D) are crossed. Called after every commit.
func (e *Engine) maybeCompact() error {
	if !e.opts.AutoCompact {
		return nil
	}

	e.mu.Lock()
	bytesSince := e.bytesSinceCompact
	e.mu.Unlock()

	if bytesSince < e.opts.CompactAbsoluteBytes {
		return nil
	}
	if bytesSince < e.opts.CompactMinDeltaBytes {
		return nil
	}

	totalSize := e.log.Size()
	liveSize := e.estimateLiveBytes()
	if liveSize == 0 {
		return nil
	}
	fragmentation := float64(totalSize) / float64(liveSize)
	if fragmentation < e.opts.CompactFragmentationRatio {
		return nil
	}

	return e.compact()
}

// estimateLiveBytes sums the byte size of every live key/value pair
// currently in the KeyMap, as a proxy for the log's live-data footprint.
func (e *Engine) estimateLiveBytes() int64 {
	var total int64
	c := btree.NewCursor(e.keyMap)
	c.Seek(nil)
	for c.Valid() {
		total += int64(len(c.Key())) + int64(c.Value().Len())
		if !c.Next() {
			break
		}
	}
	return total
}

// compact rewrites the log to contain only the KeyMap's current contents.
func (e *Engine) compact() error {
	var live []wal.LiveEntry
	c := btree.NewCursor(e.keyMap)
	c.Seek(nil)
	for c.Valid() {
		live = append(live, wal.LiveEntry{Key: []byte(c.Key()), Value: c.Value().Bytes()})
		if !c.Next() {
			break
		}
	}

	if err := e.log.Compact(live); err != nil {
		return errors.Wrap(err, "compact log")
	}

	e.mu.Lock()
	e.bytesSinceCompact = 0
	e.mu.Unlock()

	e.metrics.incCompaction()
	return nil
}

// Stats summarizes the engine's current state (spec-supplemented, §9's
// "vacuum-equivalent observability" decision — TegDB surfaces compaction
// pressure instead of exposing a manual VACUUM verb).
type Stats struct {
	LogSizeBytes    int64
	LiveBytes       int64
	Fragmentation   float64
	Tables          int
}

// Stats reports current engine-level statistics.
func (e *Engine) Stats() Stats {
	logSize := e.log.Size()
	live := e.estimateLiveBytes()
	frag := 0.0
	if live > 0 {
		frag = float64(logSize) / float64(live)
	}
	return Stats{
		LogSizeBytes:  logSize,
		LiveBytes:     live,
		Fragmentation: frag,
		Tables:        len(e.catalog.Tables()),
	}
}
