// Package wal implements TegDB's Log (spec §4.1): an append-only,
// length-prefixed record file with crash-safe commit markers and
// compaction. The on-disk entry framing matches spec §6's file format
// exactly: a little-endian key length, a little-endian value length, the
// key bytes, then the value bytes. There is no entry header, checksum or
// magic number — the teacher repo's WAL entries carry all three, but
// spec §6 fixes the wire format without them, so TegDB's Log conforms to
// the documented external interface instead of the teacher's richer one.
package wal

import (
	"encoding/binary"
	"io"
)

// LengthPrefixSize is the size in bytes of the two length prefixes that
// precede every entry's key and value.
const LengthPrefixSize = 8

// CommitMarkerKey is the reserved sentinel key (spec §6) whose presence,
// paired with an empty value, denotes "everything before me is durable and
// committed". Any key with this "__" prefix is engine-owned (spec §3).
const CommitMarkerKey = "__tx_commit__"

// SchemaKeyPrefix namespaces persisted TableSchema records (spec §3/§4.6).
const SchemaKeyPrefix = "__schema__:"

// Entry is one record in the log: a key and a value. An empty Value on a
// row key means "delete this key" (a tombstone); an empty Value on
// CommitMarkerKey means "transaction boundary".
type Entry struct {
	Key   []byte
	Value []byte
}

// IsCommitMarker reports whether this entry is the reserved commit marker.
func (e *Entry) IsCommitMarker() bool {
	return string(e.Key) == CommitMarkerKey
}

// Encode writes the entry's length-prefixed framing to buf, which must be
// at least LengthPrefixSize+len(Key)+len(Value) bytes.
func (e *Entry) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(e.Key)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(e.Value)))
	n := copy(buf[8:], e.Key)
	n += copy(buf[8+n:], e.Value)
	return 8 + n
}

// EncodedSize returns the number of bytes Encode will write for this entry.
func (e *Entry) EncodedSize() int {
	return LengthPrefixSize + len(e.Key) + len(e.Value)
}

// WriteTo writes the entry's framing directly to w, avoiding an
// intermediate buffer for the payload bytes.
func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	var prefix [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(e.Key)))
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(e.Value)))

	n, err := w.Write(prefix[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Key)
	n += m
	if err != nil {
		return int64(n), err
	}

	m, err = w.Write(e.Value)
	n += m
	return int64(n), err
}
