package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dfind/pkg/dfind/resolver"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var _ resolver.DigestCache = (*Cache)(nil)

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "digests"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func record(path string, size int64, mtime time.Time) *types.FileRecord {
	rec := types.NewFileRecord(path, size, mtime)
	rec.Partial = types.Digest{1, 2, 3}
	rec.Full = types.Digest{4, 5, 6}
	return rec
}

func TestEntryEncodeDecode(t *testing.T) {
	in := &Entry{Version: Version, Size: 10, Mtime: 99, Algorithm: "blake3", Spec: "single:4096", Partial: []byte{1}, Full: []byte{2}}
	data, err := in.Encode()
	require.NoError(t, err)

	var out Entry
	require.NoError(t, out.Decode(data))
	assert.Equal(t, *in, out)
}

func TestEntryMatches(t *testing.T) {
	mtime := time.Unix(1700000000, 5)
	e := &Entry{Version: Version, Size: 10, Mtime: mtime.UnixNano(), Algorithm: "blake3"}

	assert.True(t, e.Matches(10, mtime, "blake3"))
	assert.False(t, e.Matches(11, mtime, "blake3"))
	assert.False(t, e.Matches(10, mtime.Add(time.Second), "blake3"))
	assert.False(t, e.Matches(10, mtime, "md5"))

	e.Version = Version + 1
	assert.False(t, e.Matches(10, mtime, "blake3"))
}

func TestCache_PutGet(t *testing.T) {
	c := openTest(t)
	mtime := time.Unix(1700000000, 0)
	rec := record("/data/a.bin", 100, mtime)

	require.NoError(t, c.Put(rec, "blake3", "single:4096"))

	// Served from the pending buffer before a flush.
	partial, full := c.Get(types.NewFileRecord("/data/a.bin", 100, mtime), "blake3", "single:4096")
	assert.Equal(t, types.Digest{1, 2, 3}, partial)
	assert.Equal(t, types.Digest{4, 5, 6}, full)

	require.NoError(t, c.Flush())
	partial, full = c.Get(types.NewFileRecord("/data/a.bin", 100, mtime), "blake3", "single:4096")
	assert.NotNil(t, partial)
	assert.NotNil(t, full)
}

func TestCache_Invalidation(t *testing.T) {
	c := openTest(t)
	mtime := time.Unix(1700000000, 0)
	require.NoError(t, c.Put(record("/data/a.bin", 100, mtime), "blake3", "single:4096"))
	require.NoError(t, c.Flush())

	tests := []struct {
		name        string
		rec         *types.FileRecord
		algo, spec  string
		wantPartial bool
		wantFull    bool
	}{
		{"different spec keeps full", types.NewFileRecord("/data/a.bin", 100, mtime), "blake3", "dual:[1,1]", false, true},
		{"changed size", types.NewFileRecord("/data/a.bin", 101, mtime), "blake3", "single:4096", false, false},
		{"changed mtime", types.NewFileRecord("/data/a.bin", 100, mtime.Add(time.Nanosecond)), "blake3", "single:4096", false, false},
		{"other algorithm", types.NewFileRecord("/data/a.bin", 100, mtime), "sha256", "single:4096", false, false},
		{"unknown path", types.NewFileRecord("/data/b.bin", 100, mtime), "blake3", "single:4096", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partial, full := c.Get(tt.rec, tt.algo, tt.spec)
			assert.Equal(t, tt.wantPartial, partial != nil)
			assert.Equal(t, tt.wantFull, full != nil)
		})
	}
}

func TestCache_ClearAndStats(t *testing.T) {
	c := openTest(t)
	mtime := time.Unix(1700000000, 0)
	for _, p := range []string{"/a/1", "/a/2", "/ab/3", "/b/4"} {
		require.NoError(t, c.Put(record(p, 1, mtime), "blake3", "single:4096"))
	}

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Entries)
	assert.Equal(t, c.Dir(), stats.Dir)

	n, err := c.Clear("/a")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "/ab is not under /a")

	n, err = c.Clear("")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err = c.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestCache_PersistsAcrossOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "digests")
	mtime := time.Unix(1700000000, 0)

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(record("/p/x", 7, mtime), "md5", "single:4096"))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, full := c.Get(types.NewFileRecord("/p/x", 7, mtime), "md5", "single:4096")
	assert.Equal(t, types.Digest{4, 5, 6}, full)
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, "digests", filepath.Base(DefaultDir()))
	assert.Equal(t, "dfind", filepath.Base(filepath.Dir(DefaultDir())))
}
