package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dfind/pkg/dfind/filter"
	"github.com/jamesainslie/dfind/pkg/dfind/throttle"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// tree creates files under a fresh temp dir. Keys are slash-separated
// relative paths.
func tree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestOptionsValidate(t *testing.T) {
	opts := Options{Workers: -3}
	require.NoError(t, opts.Validate())
	assert.Equal(t, ".", opts.Root)
	assert.Equal(t, 0, opts.Workers)
	assert.Equal(t, throttle.Nop{}, opts.Throttle)

	def := DefaultOptions()
	assert.Equal(t, DefaultIgnoreFile, def.IgnoreFile)
}

func TestScan_BucketsBySize(t *testing.T) {
	root := tree(t, map[string]string{
		"a.txt":     "hello",
		"b.txt":     "world",
		"c/d.txt":   "hello",
		"unique.md": "only one of this length",
		".hidden":   "12345",
	})

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.FilesScanned)
	assert.Equal(t, 2, res.UniqueSizes)
	require.Len(t, res.Buckets, 1)

	bucket := res.Buckets[5]
	require.NotNil(t, bucket)
	require.Len(t, bucket.Files, 4)

	// Members come back ordered by path.
	var paths []string
	for _, rec := range bucket.Files {
		assert.Equal(t, int64(5), rec.Size)
		paths = append(paths, rec.Path)
	}
	assert.IsIncreasing(t, paths)
	assert.Contains(t, paths, filepath.Join(root, ".hidden"))
}

func TestScan_EveryRecordInItsSizeBucket(t *testing.T) {
	root := tree(t, map[string]string{
		"1": "aa", "2": "bb", "3": "ccc", "4": "ddd", "5": "eeee", "x/6": "ff",
	})

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	seen := 0
	for size, bucket := range res.Buckets {
		assert.GreaterOrEqual(t, len(bucket.Files), 2)
		for _, rec := range bucket.Files {
			assert.Equal(t, size, rec.Size)
			seen++
		}
	}
	assert.Equal(t, 5, seen, "the single 4-byte file is dropped")
}

func TestScan_EmptyDirectory(t *testing.T) {
	res, err := New(Options{Root: t.TempDir()}).Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Buckets)
	assert.Zero(t, res.FilesScanned)
	assert.Empty(t, res.Warnings)
	assert.GreaterOrEqual(t, res.DirsScanned, int64(1))
}

func TestScan_RootErrors(t *testing.T) {
	root := tree(t, map[string]string{"file.txt": "x"})

	_, err := New(Options{Root: filepath.Join(root, "missing")}).Scan(context.Background())
	assert.ErrorIs(t, err, types.ErrFatalPath)
	assert.ErrorIs(t, err, types.ErrNotExist)

	_, err = New(Options{Root: filepath.Join(root, "file.txt")}).Scan(context.Background())
	assert.ErrorIs(t, err, types.ErrFatalPath)
	assert.ErrorIs(t, err, types.ErrNotDir)
}

func TestScan_UnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := tree(t, map[string]string{
		"ok/a.bin":     "same",
		"ok/b.bin":     "same",
		"locked/c.bin": "same",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, locked, res.Warnings[0].Path)
	assert.Equal(t, types.WarnIO, res.Warnings[0].Kind)

	require.Contains(t, res.Buckets, int64(4))
	assert.Len(t, res.Buckets[4].Files, 2)
}

func TestScan_SymlinksNotFollowed(t *testing.T) {
	root := tree(t, map[string]string{
		"real/a.txt": "abc",
		"real/b.txt": "abc",
	})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "a.txt"), filepath.Join(root, "link.txt")))

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.FilesScanned)
	require.Contains(t, res.Buckets, int64(3))
	assert.Len(t, res.Buckets[3].Files, 2)
}

func TestScan_FilterAndIgnoreFile(t *testing.T) {
	root := tree(t, map[string]string{
		"keep/a.jpg":       "pixels",
		"keep/b.jpg":       "pixels",
		"keep/c.txt":       "pixels",
		"cache/d.jpg":      "pixels",
		"tmp/e.jpg":        "pixels",
		"big/f.jpg":        "much bigger content",
		DefaultIgnoreFile:  "cache/\n",
		"tmp/.placeholder": "",
	})

	f, err := filter.New(filter.WithExtensions("jpg"), filter.WithExclude("tmp"))
	require.NoError(t, err)

	res, err := New(Options{Root: root, Filter: f, IgnoreFile: DefaultIgnoreFile}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.FilesScanned)
	require.Contains(t, res.Buckets, int64(6))

	var names []string
	for _, rec := range res.Buckets[6].Files {
		names = append(names, filepath.Base(rec.Path))
	}
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, names)
}

func TestScan_FolderStats(t *testing.T) {
	root := tree(t, map[string]string{
		"a":     "12",
		"b":     "1234",
		"sub/c": "123",
	})

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.FolderStats{
		{Path: root, Files: 2, Bytes: 6},
		{Path: filepath.Join(root, "sub"), Files: 1, Bytes: 3},
	}, res.Folders)
	assert.Equal(t, int64(9), res.BytesScanned)
}

func TestScan_Cancelled(t *testing.T) {
	root := tree(t, map[string]string{"a": "1", "b": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_StreamsRecords(t *testing.T) {
	root := tree(t, map[string]string{"x.TXT": "1", "y/z.Go": "22"})

	var mu sync.Mutex
	got := map[string]string{}
	err := New(Options{Root: root}).Walk(context.Background(), func(rec *types.FileRecord) {
		mu.Lock()
		got[filepath.Base(rec.Path)] = rec.Ext
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"x.TXT": "txt", "z.Go": "go"}, got)
}

func TestWalk_ReportsProgress(t *testing.T) {
	root := tree(t, map[string]string{"a": "1"})

	var mu sync.Mutex
	var last Progress
	s := New(Options{Root: root, OnProgress: func(p Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	}})
	require.NoError(t, s.Walk(context.Background(), func(*types.FileRecord) {}))

	assert.Equal(t, int64(1), last.FilesScanned)
	assert.Equal(t, root, s.Root())
}

// countingThrottle records Pace calls and runs an optional hook.
type countingThrottle struct {
	calls  atomic.Int64
	onPace func() error
}

func (c *countingThrottle) Pace(ctx context.Context) error {
	c.calls.Add(1)
	if c.onPace != nil {
		if err := c.onPace(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func TestScan_PacesThrottle(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 130; i++ {
		dir := "left"
		if i%2 == 1 {
			dir = "right"
		}
		files[fmt.Sprintf("%s/f%03d.txt", dir, i)] = "x"
	}
	root := tree(t, files)

	ct := &countingThrottle{}
	res, err := New(Options{Root: root, Workers: 4, Throttle: ct}).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(130), res.FilesScanned)

	// One checkpoint per directory (root, left, right) and one per
	// PaceEvery files.
	assert.Equal(t, int64(3+130/PaceEvery), ct.calls.Load())
}

func TestScan_ThrottleCancellationStopsWalk(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 200; i++ {
		files[fmt.Sprintf("d%02d/f.txt", i)] = "x"
	}
	root := tree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ct := &countingThrottle{onPace: func() error {
		cancel()
		return nil
	}}

	_, err := New(Options{Root: root, Workers: 1, Throttle: ct}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
