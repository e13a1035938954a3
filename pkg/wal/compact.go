package wal

import (
	"bufio"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// LiveEntry is one surviving key/value pair to carry into a compacted log.
type LiveEntry struct {
	Key   []byte
	Value []byte
}

// Compact rewrites the log to contain only the given live entries (the
// current KeyMap contents) followed by a closing commit marker, then
// atomically replaces the old file with the new one (spec §4.1's
// "compaction drops dead entries without a window where the file is
// inconsistent"). The caller must hold whatever lock serializes writers
// against this Log for the duration of the call.
func (l *Log) Compact(entries []LiveEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stagingPath := l.path + ".compact-" + uuid.NewString()

	nf, err := os.OpenFile(stagingPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrap(err, "create compaction staging file")
	}

	bw := bufio.NewWriterSize(nf, l.opts.WriteBufferSize)
	var written int64
	for _, e := range entries {
		ent := Entry{Key: e.Key, Value: e.Value}
		n, err := ent.WriteTo(bw)
		if err != nil {
			bw.Flush()
			nf.Close()
			os.Remove(stagingPath)
			return errors.Wrap(err, "write compacted entry")
		}
		written += n
	}

	marker := Entry{Key: []byte(CommitMarkerKey)}
	n, err := marker.WriteTo(bw)
	if err != nil {
		bw.Flush()
		nf.Close()
		os.Remove(stagingPath)
		return errors.Wrap(err, "write compacted commit marker")
	}
	written += n

	if err := bw.Flush(); err != nil {
		nf.Close()
		os.Remove(stagingPath)
		return errors.Wrap(err, "flush compaction staging file")
	}
	if err := nf.Sync(); err != nil {
		nf.Close()
		os.Remove(stagingPath)
		return errors.Wrap(err, "fsync compaction staging file")
	}

	// Swap file descriptors under the write lock: release the old lock,
	// rename into place, re-open and re-lock the live path.
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()

	if err := os.Rename(stagingPath, l.path); err != nil {
		nf.Close()
		return errors.Wrap(err, "rename compacted wal into place")
	}

	if err := unix.Flock(int(nf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		nf.Close()
		return errors.Wrap(err, "relock compacted wal")
	}

	l.file = nf
	l.writer = bufio.NewWriterSize(nf, l.opts.WriteBufferSize)
	l.offset = written
	l.dirty = 0

	if _, err := nf.Seek(written, 0); err != nil {
		return errors.Wrap(err, "seek compacted wal to end")
	}

	return nil
}
