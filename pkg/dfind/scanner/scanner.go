package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	gitignore "github.com/denormal/go-gitignore"

	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var logger = logging.Get("scanner")

// Result is the outcome of a completed scan.
type Result struct {
	// Root is the absolute path that was scanned.
	Root string

	// Buckets holds only sizes shared by two or more files.
	Buckets types.SizeBuckets

	// FilesScanned counts regular files that passed the filter.
	FilesScanned int64

	// FilesSkipped counts regular files rejected by the filter or ignore file.
	FilesSkipped int64

	// DirsScanned counts directories visited, including the root.
	DirsScanned int64

	// BytesScanned sums the sizes of scanned files.
	BytesScanned int64

	// UniqueSizes is the number of distinct sizes seen before pruning.
	UniqueSizes int

	// Folders has one entry per directory holding scanned files, by path.
	Folders []types.FolderStats

	// Warnings lists entries that could not be read, ordered by path.
	Warnings []types.ScanWarning

	// Elapsed is the wall time of the walk.
	Elapsed time.Duration
}

// Scanner performs parallel directory scanning using fastwalk.
type Scanner struct {
	opts Options
	root string

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	filesSkipped atomic.Int64
	bytesScanned atomic.Int64
	filesVisited atomic.Int64

	currentPath  atomic.Value
	lastProgress atomic.Int64

	warnings   []types.ScanWarning
	warningsMu sync.Mutex

	ignore gitignore.GitIgnore
}

// New creates a Scanner. Options are validated and defaults applied.
func New(opts Options) *Scanner {
	_ = opts.Validate()

	s := &Scanner{opts: opts}
	s.currentPath.Store("")
	return s
}

// Root returns the resolved absolute root, or "" before a walk starts.
func (s *Scanner) Root() string {
	return s.root
}

// Walk visits every regular file under the root and calls fn with its
// record. fn is called from multiple goroutines. Unreadable entries are
// recorded as warnings and skipped. Walk fails only when the root is
// invalid or ctx is cancelled.
func (s *Scanner) Walk(ctx context.Context, fn func(*types.FileRecord)) error {
	root, err := ValidateRoot(s.opts.Root)
	if err != nil {
		return err
	}
	s.root = root

	gi, err := loadIgnore(root, s.opts.IgnoreFile)
	if err != nil {
		s.addWarning(filepath.Join(root, s.opts.IgnoreFile), err)
	}
	s.ignore = gi

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}

	logger.Debug("walk started", "root", root, "workers", s.opts.Workers)
	s.currentPath.Store(root)
	s.reportProgressForce()

	err = fastwalk.Walk(&conf, root, s.walkCallback(ctx, fn))
	s.reportProgressForce()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

// Scan walks the tree and buckets the files by size, dropping sizes held
// by a single file.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	var mu sync.Mutex
	buckets := make(types.SizeBuckets)
	folders := make(map[string]*types.FolderStats)

	err := s.Walk(ctx, func(rec *types.FileRecord) {
		dir := filepath.Dir(rec.Path)

		mu.Lock()
		defer mu.Unlock()

		buckets.Add(rec)
		stats, ok := folders[dir]
		if !ok {
			stats = &types.FolderStats{Path: dir}
			folders[dir] = stats
		}
		stats.Files++
		stats.Bytes += rec.Size
	})
	if err != nil {
		return nil, err
	}

	unique := len(buckets)
	pruned := buckets.Prune()

	res := &Result{
		Root:         s.root,
		Buckets:      buckets,
		FilesScanned: s.filesScanned.Load(),
		FilesSkipped: s.filesSkipped.Load(),
		DirsScanned:  s.dirsScanned.Load(),
		BytesScanned: s.bytesScanned.Load(),
		UniqueSizes:  unique,
		Folders:      sortedFolders(folders),
		Warnings:     s.Warnings(),
		Elapsed:      time.Since(start),
	}

	logger.Info("scan complete",
		"root", s.root,
		"files", res.FilesScanned,
		"dirs", res.DirsScanned,
		"sizes", unique,
		"singletons", pruned,
		"candidates", buckets.FileCount(),
		"warnings", len(res.Warnings),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}

// Warnings returns a copy of the warnings collected so far, by path.
func (s *Scanner) Warnings() []types.ScanWarning {
	s.warningsMu.Lock()
	out := slices.Clone(s.warnings)
	s.warningsMu.Unlock()

	types.SortWarnings(out)
	return out
}

// ValidateRoot resolves root to an absolute path and checks that it is an
// existing directory.
func ValidateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &types.PathError{Path: root, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &types.PathError{Path: abs, Err: types.ErrNotExist}
		}
		return "", &types.PathError{Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &types.PathError{Path: abs, Err: types.ErrNotDir}
	}
	return abs, nil
}

// walkCallback returns the callback for fastwalk.Walk.
func (s *Scanner) walkCallback(ctx context.Context, fn func(*types.FileRecord)) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			s.addWarning(path, err)
			return nil
		}

		rel := s.relative(path)

		if d.IsDir() {
			if rel != "." && (s.opts.Filter.SkipDir(rel) || ignored(s.ignore, rel, true)) {
				return fastwalk.SkipDir
			}
			s.dirsScanned.Add(1)
			s.currentPath.Store(path)
			s.reportProgress()
			return s.opts.Throttle.Pace(ctx)
		}

		// Symlinks, sockets, devices and pipes are not candidates.
		if !d.Type().IsRegular() {
			return nil
		}

		s.processFile(path, rel, d, fn)
		if s.filesVisited.Add(1)%PaceEvery == 0 {
			return s.opts.Throttle.Pace(ctx)
		}
		return nil
	}
}

// processFile stats a regular file and hands its record to fn.
func (s *Scanner) processFile(path, rel string, d fs.DirEntry, fn func(*types.FileRecord)) {
	info, err := d.Info()
	if err != nil {
		s.addWarning(path, err)
		return
	}

	rec := types.NewFileRecord(path, info.Size(), info.ModTime())
	if ignored(s.ignore, rel, false) || !s.opts.Filter.MatchFile(rel, rec.Size, rec.Ext) {
		s.filesSkipped.Add(1)
		return
	}

	s.filesScanned.Add(1)
	s.bytesScanned.Add(rec.Size)
	fn(rec)
}

func (s *Scanner) relative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// addWarning records an unreadable entry without stopping the walk.
func (s *Scanner) addWarning(path string, err error) {
	logger.Warn("skipping unreadable entry", "path", path, "error", err)

	s.warningsMu.Lock()
	s.warnings = append(s.warnings, types.ScanWarning{
		Path: path,
		Kind: types.WarnIO,
		Err:  err,
	})
	s.warningsMu.Unlock()
}

// reportProgress calls OnProgress at most every 10ms.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return
	}
	s.sendProgress()
}

func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.sendProgress()
}

func (s *Scanner) sendProgress() {
	current, _ := s.currentPath.Load().(string)
	s.opts.OnProgress(Progress{
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		BytesScanned: s.bytesScanned.Load(),
		CurrentPath:  current,
	})
}

func sortedFolders(m map[string]*types.FolderStats) []types.FolderStats {
	out := make([]types.FolderStats, 0, len(m))
	for _, key := range slices.Sorted(maps.Keys(m)) {
		out = append(out, *m[key])
	}
	return out
}
