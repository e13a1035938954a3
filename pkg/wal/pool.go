package wal

import "sync"

// pool.go: the read path takes its Entry structs from a sync.Pool, the same
// trick the teacher's WAL pool.go uses. Only entries abandoned on a read
// error go back to the pool; key and value buffers are allocated fresh for
// every entry read.
var entryPool = sync.Pool{
	New: func() interface{} {
		return &Entry{}
	},
}

// acquireEntry returns a zeroed Entry from the pool.
func acquireEntry() *Entry {
	e := entryPool.Get().(*Entry)
	e.Key = nil
	e.Value = nil
	return e
}

// releaseEntry returns e to the pool.
func releaseEntry(e *Entry) {
	entryPool.Put(e)
}
