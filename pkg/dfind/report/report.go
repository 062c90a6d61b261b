// Package report renders duplicate-finder results. Formatters are kept in a
// registry so the CLI can pick one by name:
//
//	f, err := report.Get("markdown")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, result); err != nil {
//	    return err
//	}
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var logger = logging.Get("report")

// Result is everything a formatter needs to describe one run.
type Result struct {
	// RunID identifies the run in logs and in the report.
	RunID string

	// Root is the absolute path that was scanned.
	Root string

	// Generated is when the run finished.
	Generated time.Time

	// Algorithm names the content digest used for grouping.
	Algorithm string

	// FilesScanned is the number of files processed by the scanner.
	FilesScanned int64

	// UniqueSizes is the number of distinct file sizes seen.
	UniqueSizes int

	// Groups are the confirmed duplicate groups, largest size first.
	Groups []types.DuplicateGroup

	// Folders holds per-directory file counts and byte totals.
	Folders []types.FolderStats

	// Warnings lists files and directories left out of the run.
	Warnings []types.ScanWarning

	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration
}

// DuplicateFiles returns the number of files that belong to a group.
func (r *Result) DuplicateFiles() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Files)
	}
	return n
}

// Reclaimable returns the bytes freed by keeping one copy of every group.
func (r *Result) Reclaimable() int64 {
	var total int64
	for i := range r.Groups {
		total += r.Groups[i].Reclaimable()
	}
	return total
}

// Formatter is the interface that all report formatters implement.
type Formatter interface {
	// Format writes the rendered report to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered formatter names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("markdown", func() Formatter { return &MarkdownFormatter{} })
	DefaultRegistry.Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// WriteFile renders r with f and replaces path with the output. The file is
// written to a temporary sibling first and renamed into place.
func WriteFile(path string, f Formatter, r *Result) (err error) {
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	logger.Info("report written", "path", path, "bytes", buf.Len(), "groups", len(r.Groups))
	return nil
}
