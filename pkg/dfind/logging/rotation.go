package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation.
	// Zero uses the default of 10MB.
	MaxSize int64

	// MaxAge is the number of days to keep rotated files. Zero keeps them
	// regardless of age.
	MaxAge int

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int

	// Daily rotates the file when the calendar day changes.
	Daily bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// backupStamp is the timestamp layout embedded in rotated file names,
// e.g. dfind.2024-01-20-150405.log.
const backupStamp = "2006-01-02-150405"

// RotatingWriter is an io.WriteCloser that rotates its file by size and,
// optionally, by day. It is safe for concurrent use and takes an advisory
// lock on each write where the platform supports it.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	cfg      RotationConfig
	file     *os.File
	size     int64
	openedOn time.Time
}

// NewRotatingWriter opens (or creates) path for appending, creating parent
// directories as needed, and prunes old backups.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune(time.Now())
	return w, nil
}

// Write appends p, rotating first if p would overflow the file or the day
// has changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	now := time.Now()
	if w.needsRotation(int64(len(p)), now) {
		if err := w.rotate(now); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlockFile(w.file)

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	return errors.Join(f.Sync(), f.Close())
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), f.Close())
	}

	w.file = f
	w.size = info.Size()
	w.openedOn = info.ModTime()
	return nil
}

func (w *RotatingWriter) needsRotation(incoming int64, now time.Time) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if !w.cfg.Daily {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := w.openedOn.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.backupName(now)); err != nil {
			return fmt.Errorf("renaming log file: %w", err)
		}
	}

	if err := w.open(); err != nil {
		return err
	}
	w.openedOn = now
	w.prune(now)
	return nil
}

// backupName returns a rotated file name that does not exist yet.
func (w *RotatingWriter) backupName(now time.Time) string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	name := fmt.Sprintf("%s.%s%s", base, now.Format(backupStamp), ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s.%s-%d%s", base, now.Format(backupStamp), i, ext)
	}
}

type backup struct {
	path    string
	modTime time.Time
}

// backups lists rotated siblings of the log file, newest first.
func (w *RotatingWriter) backups() []backup {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, backup{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	slices.SortFunc(out, func(a, b backup) int {
		return b.modTime.Compare(a.modTime)
	})
	return out
}

// prune removes backups beyond MaxBackups or older than MaxAge. Failures
// are ignored.
func (w *RotatingWriter) prune(now time.Time) {
	maxAge := time.Duration(w.cfg.MaxAge) * 24 * time.Hour
	for i, b := range w.backups() {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := w.cfg.MaxAge > 0 && now.Sub(b.modTime) > maxAge
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}
