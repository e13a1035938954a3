package wal

import (
	"io"
	"os"
)

// recover implements spec §4.1's two-pass crash recovery: scan forward
// for the last commit marker, treat everything after it as a torn write
// and discard it, then replay everything up to that cut-off. It returns
// the byte offset to truncate the file to and the live (non-marker)
// entries in file order, ready to be folded into a KeyMap.
func recover(f *os.File) (cutoff int64, live []Entry, err error) {
	// Pass 1: find the last commit marker before the first parse failure.
	var offset int64
	for {
		e, next, readErr := readEntryAt(f, offset)
		if readErr == io.EOF {
			break
		}
		if readErr == io.ErrUnexpectedEOF {
			// Torn write: stop here, keep whatever cutoff we already found.
			break
		}
		if readErr != nil {
			return 0, nil, readErr
		}

		if e.IsCommitMarker() {
			cutoff = next
		}
		offset = next
	}

	// Pass 2: replay entries up to the cut-off, seeking back to the start.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, nil, err
	}

	var replayed int64
	for replayed < cutoff {
		e, next, readErr := readEntryAt(f, replayed)
		if readErr != nil {
			return 0, nil, readErr
		}
		if !e.IsCommitMarker() {
			live = append(live, *e)
		}
		replayed = next
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, nil, err
	}

	return cutoff, live, nil
}
