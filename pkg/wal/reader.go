package wal

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// maxEntrySize guards against reading a corrupt length prefix as an
// enormous allocation request.
const maxEntrySize = 1 << 30 // 1GiB

// Reader reads entries sequentially from a log file, independent of any
// writer that may also have it open.
type Reader struct {
	file   *os.File
	offset int64
}

// NewReader opens path for sequential reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open wal for read")
	}
	return &Reader{file: f}, nil
}

// ReadEntry reads the next entry, returning io.EOF when the file is
// exhausted at an entry boundary.
func (r *Reader) ReadEntry() (*Entry, error) {
	e, _, err := readEntryAt(r.file, r.offset)
	if err != nil {
		return nil, err
	}
	r.offset += int64(e.EncodedSize())
	return e, nil
}

// Offset returns the reader's current position in the file.
func (r *Reader) Offset() int64 { return r.offset }

// Close closes the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// readEntryAt reads one framed entry starting at the reader's current
// file position and returns it along with the number of bytes consumed.
// io.EOF means there was nothing left to read; io.ErrUnexpectedEOF means
// a torn write was found mid-entry (the normal shape of a crash).
func readEntryAt(f *os.File, offset int64) (*Entry, int64, error) {
	var prefix [LengthPrefixSize]byte
	n, err := io.ReadFull(f, prefix[:])
	if err == io.EOF && n == 0 {
		return nil, offset, io.EOF
	}
	if err != nil {
		return nil, offset, io.ErrUnexpectedEOF
	}

	keyLen := binary.LittleEndian.Uint32(prefix[0:4])
	valueLen := binary.LittleEndian.Uint32(prefix[4:8])

	if keyLen > maxEntrySize || valueLen > maxEntrySize {
		return nil, offset, io.ErrUnexpectedEOF
	}

	e := acquireEntry()
	e.Key = make([]byte, keyLen)
	if _, err := io.ReadFull(f, e.Key); err != nil {
		releaseEntry(e)
		return nil, offset, io.ErrUnexpectedEOF
	}

	if valueLen > 0 {
		e.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(f, e.Value); err != nil {
			releaseEntry(e)
			return nil, offset, io.ErrUnexpectedEOF
		}
	}

	return e, offset + int64(e.EncodedSize()), nil
}
