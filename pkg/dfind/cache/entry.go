// Package cache persists file digests across runs in a badger database so
// unchanged files are not re-read.
package cache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Version is incremented when the entry format changes. Entries with a
// different version are treated as misses.
const Version = 1

// Entry is the stored digest state of one file.
type Entry struct {
	Version   int
	Size      int64
	Mtime     int64 // UnixNano
	Algorithm string
	Spec      string // partial spec fingerprint
	Partial   []byte
	Full      []byte
	Stored    int64 // UnixNano, informational
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Matches reports whether the entry still describes a file with the given
// size and modification time, hashed with algorithm.
func (e *Entry) Matches(size int64, mtime time.Time, algorithm string) bool {
	return e.Version == Version &&
		e.Size == size &&
		e.Mtime == mtime.UnixNano() &&
		e.Algorithm == algorithm
}
