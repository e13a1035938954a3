package wal

import (
	"bufio"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
)

// Log owns the single append-only file backing one TegDB database (spec
// §4.1/§6). It serializes writes, applies the configured durability
// policy, and exclusively locks the file for the lifetime of the process
// holding it open.
type Log struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *bufio.Writer
	opts    Options
	offset  int64 // next append offset
	dirty   int64 // bytes written since last sync
	done    chan struct{}
	ticker  *time.Ticker
	closed  bool
}

// Open opens (creating if necessary) the log file at path, takes an
// exclusive advisory lock on it, and runs crash recovery (truncating any
// trailing torn write past the last commit marker). It returns the
// ready-to-append Log plus every live key/value pair up to the recovered
// cut-off, in file order, for the caller to fold into a KeyMap.
func Open(path string, opts Options) (log *Log, recovered []Entry, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, &tegerrors.IOError{Op: "open wal file", Err: err}
	}

	if flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); flockErr != nil {
		f.Close()
		return nil, nil, &tegerrors.FileLockedError{Path: path}
	}

	cutoff, entries, err := recover(f)
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, nil, &tegerrors.IOError{Op: "recover wal", Err: err}
	}

	if err := f.Truncate(cutoff); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, nil, &tegerrors.IOError{Op: "truncate wal tail", Err: err}
	}
	if _, err := f.Seek(cutoff, 0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, nil, &tegerrors.IOError{Op: "seek wal to cutoff", Err: err}
	}

	l := &Log{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, opts.WriteBufferSize),
		opts:   opts,
		offset: cutoff,
		done:   make(chan struct{}),
	}

	if opts.Durability == GroupCommit {
		l.ticker = time.NewTicker(opts.GroupCommitInterval)
		go l.backgroundSync()
	}

	return l, entries, nil
}

// Append writes one framed entry and returns the file offset it was
// written at (spec §4.1's "append returns the offset of the new entry").
func (l *Log) Append(key, value []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := l.offset
	e := Entry{Key: key, Value: value}
	n, err := e.WriteTo(l.writer)
	if err != nil {
		return offset, &tegerrors.IOError{Op: "append wal entry", Err: err}
	}
	l.offset += n
	l.dirty += n

	if l.opts.Durability == Immediate && e.IsCommitMarker() {
		return offset, l.syncLocked()
	}
	return offset, nil
}

// AppendCommitMarker appends the reserved commit-marker entry, the
// durability boundary the recovery scan looks for.
func (l *Log) AppendCommitMarker() (int64, error) {
	return l.Append([]byte(CommitMarkerKey), nil)
}

// Sync flushes the buffered writer and fsyncs the underlying file.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked()
}

func (l *Log) syncLocked() error {
	if err := l.writer.Flush(); err != nil {
		return &tegerrors.IOError{Op: "flush wal writer", Err: err}
	}
	if l.opts.Durability == None {
		l.dirty = 0
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return &tegerrors.IOError{Op: "fsync wal file", Err: err}
	}
	l.dirty = 0
	return nil
}

// Size returns the current logical length of the file.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Path returns the file path the log was opened with.
func (l *Log) Path() string { return l.path }

// Close flushes, releases the file lock, and closes the file. Safe to
// call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.ticker != nil {
		l.ticker.Stop()
		close(l.done)
	}

	syncErr := l.syncLocked()
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()

	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

func (l *Log) backgroundSync() {
	for {
		select {
		case <-l.ticker.C:
			l.Sync()
		case <-l.done:
			return
		}
	}
}
