// Package recent keeps the bounded, most-recent-first list of scanned
// folders. Persistence goes through a Store so callers decide where the
// list lives.
package recent

import (
	"path/filepath"
	"slices"
)

// DefaultMax is the default number of folders remembered.
const DefaultMax = 20

// Store loads and saves the folder list.
type Store interface {
	Load() ([]string, error)
	Save(folders []string) error
}

// List is an ordered set of absolute folder paths, most recent first.
type List struct {
	store   Store
	max     int
	folders []string
}

// Open loads the list from store. limit <= 0 uses DefaultMax. A stored
// list longer than limit is truncated.
func Open(store Store, limit int) (*List, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	folders, err := store.Load()
	if err != nil {
		return nil, err
	}

	l := &List{store: store, max: limit}
	for _, f := range folders {
		if f == "" || slices.Contains(l.folders, f) {
			continue
		}
		l.folders = append(l.folders, f)
	}
	if len(l.folders) > limit {
		l.folders = l.folders[:limit]
	}
	return l, nil
}

// Folders returns a copy of the list, most recent first.
func (l *List) Folders() []string {
	return slices.Clone(l.folders)
}

// Len returns the number of folders.
func (l *List) Len() int {
	return len(l.folders)
}

// Push moves path to the front, evicting the oldest entry past the
// maximum, and saves the list.
func (l *List) Push(path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	next := make([]string, 0, len(l.folders)+1)
	next = append(next, path)
	for _, f := range l.folders {
		if f != path {
			next = append(next, f)
		}
	}
	if len(next) > l.max {
		next = next[:l.max]
	}

	if err := l.store.Save(next); err != nil {
		return err
	}
	l.folders = next
	return nil
}

// Clear empties the list and saves it.
func (l *List) Clear() error {
	if err := l.store.Save([]string{}); err != nil {
		return err
	}
	l.folders = nil
	return nil
}

// Pick returns the folder for a 1-based choice as shown by a numbered
// listing.
func (l *List) Pick(choice int) (string, bool) {
	if choice < 1 || choice > len(l.folders) {
		return "", false
	}
	return l.folders[choice-1], true
}
