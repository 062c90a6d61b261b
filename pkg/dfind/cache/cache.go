package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var logger = logging.Get("cache")

// flushThreshold is the number of pending writes that triggers a batch.
const flushThreshold = 512

// DefaultDir returns $XDG_CACHE_HOME/dfind/digests.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "dfind", "digests")
}

// Stats describes the cache contents.
type Stats struct {
	Dir      string
	Entries  int
	LSMBytes int64
	LogBytes int64
}

// Cache stores digests keyed by absolute path. Entries are valid while the
// file's size and modification time are unchanged. Writes are buffered and
// flushed in batches; Close flushes the rest.
type Cache struct {
	dir   string
	store *Store

	mu      sync.Mutex
	pending map[string]*Entry
}

// Open opens or creates the cache in dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	store, err := OpenStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Cache{dir: dir, store: store, pending: make(map[string]*Entry)}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the stored digests for rec. partial is returned only when
// it was computed with the same spec fingerprint.
func (c *Cache) Get(rec *types.FileRecord, algorithm, spec string) (partial, full types.Digest) {
	c.mu.Lock()
	entry, ok := c.pending[rec.Path]
	c.mu.Unlock()

	if !ok {
		var err error
		entry, err = c.store.Get(rec.Path)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.Debug("cache read failed", "path", rec.Path, "error", err)
			}
			return nil, nil
		}
	}

	if !entry.Matches(rec.Size, rec.ModTime, algorithm) {
		return nil, nil
	}
	if entry.Spec == spec && len(entry.Partial) > 0 {
		partial = entry.Partial
	}
	if len(entry.Full) > 0 {
		full = entry.Full
	}
	return partial, full
}

// Put records rec's current digests.
func (c *Cache) Put(rec *types.FileRecord, algorithm, spec string) error {
	entry := &Entry{
		Version:   Version,
		Size:      rec.Size,
		Mtime:     rec.ModTime.UnixNano(),
		Algorithm: algorithm,
		Spec:      spec,
		Partial:   rec.Partial,
		Full:      rec.Full,
		Stored:    time.Now().UnixNano(),
	}

	c.mu.Lock()
	c.pending[rec.Path] = entry
	full := len(c.pending) >= flushThreshold
	c.mu.Unlock()

	if full {
		return c.Flush()
	}
	return nil
}

// Flush writes buffered entries.
func (c *Cache) Flush() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]*Entry)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.store.PutBatch(batch); err != nil {
		return fmt.Errorf("writing %d cache entries: %w", len(batch), err)
	}
	logger.Debug("cache flushed", "entries", len(batch))
	return nil
}

// Clear removes entries for files under root. An empty root clears
// everything. It returns the number of entries removed.
func (c *Cache) Clear(root string) (int, error) {
	if err := c.Flush(); err != nil {
		return 0, err
	}
	prefix := root
	if root != "" {
		prefix = filepath.Clean(root) + string(filepath.Separator)
	}
	return c.store.DeletePrefix(prefix)
}

// Stats reports entry count and on-disk size.
func (c *Cache) Stats() (Stats, error) {
	if err := c.Flush(); err != nil {
		return Stats{}, err
	}
	n, err := c.store.Count()
	if err != nil {
		return Stats{}, err
	}
	lsm, vlog := c.store.Size()
	return Stats{Dir: c.dir, Entries: n, LSMBytes: lsm, LogBytes: vlog}, nil
}

// Close flushes pending writes and closes the database.
func (c *Cache) Close() error {
	return errors.Join(c.Flush(), c.store.Close())
}
