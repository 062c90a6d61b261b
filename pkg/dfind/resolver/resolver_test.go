package resolver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dfind/pkg/dfind/digest"
	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/scanner"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// memHasher hashes in-memory content and counts every read.
type memHasher struct {
	mu      sync.Mutex
	content map[string][]byte
	fail    map[string]error
	partial map[string]int
	full    map[string]int
}

func newMemHasher(content map[string][]byte) *memHasher {
	return &memHasher{
		content: content,
		fail:    map[string]error{},
		partial: map[string]int{},
		full:    map[string]int{},
	}
}

func (h *memHasher) Partial(_ context.Context, rec *types.FileRecord, spec hashpolicy.PartialSpec) (types.Digest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partial[rec.Path]++
	if err := h.fail[rec.Path]; err != nil {
		return nil, err
	}
	data := h.content[rec.Path]
	var buf []byte
	for _, r := range spec.Ranges(rec.Size) {
		buf = append(buf, data[r.Offset:r.End()]...)
	}
	return digest.BLAKE3.Sum(buf), nil
}

func (h *memHasher) Full(_ context.Context, rec *types.FileRecord) (types.Digest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.full[rec.Path]++
	if err := h.fail[rec.Path]; err != nil {
		return nil, err
	}
	return digest.BLAKE3.Sum(h.content[rec.Path]), nil
}

func (h *memHasher) reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.partial {
		n += c
	}
	for _, c := range h.full {
		n += c
	}
	return n
}

// bucketsOf builds size buckets from path → content, adding records in
// the given order.
func bucketsOf(content map[string][]byte, order []string) types.SizeBuckets {
	b := make(types.SizeBuckets)
	for _, p := range order {
		b.Add(types.NewFileRecord(p, int64(len(content[p])), time.Time{}))
	}
	return b
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func paths(g types.DuplicateGroup) []string {
	out := make([]string, len(g.Files))
	for i, f := range g.Files {
		out[i] = f.Path
	}
	return out
}

func TestResolve_ScenarioABCD(t *testing.T) {
	x := bytes.Repeat([]byte("x"), 100)
	y := bytes.Repeat([]byte("y"), 100)
	content := map[string][]byte{
		"/t/A": x,
		"/t/B": x,
		"/t/C": y,
		"/t/D": bytes.Repeat([]byte("z"), 200),
	}
	h := newMemHasher(content)

	buckets := bucketsOf(content, sortedKeys(content))
	buckets.Prune()

	res, err := New(Options{Hasher: h}).Resolve(context.Background(), buckets)
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"/t/A", "/t/B"}, paths(res.Groups[0]))
	assert.Equal(t, int64(100), res.Groups[0].Size)
	assert.Empty(t, res.Warnings)

	// D is alone in its size bucket and is never read.
	assert.Zero(t, h.partial["/t/D"])
	assert.Zero(t, h.full["/t/D"])
}

func TestResolve_PartialShortCircuit(t *testing.T) {
	head := bytes.Repeat([]byte("h"), 8192)
	mk := func(prefix string) []byte {
		return append([]byte(prefix), head...)
	}
	content := map[string][]byte{
		"/p/same1":  mk("same"),
		"/p/same2":  mk("same"),
		"/p/unique": mk("diff"),
	}
	h := newMemHasher(content)

	res, err := New(Options{Hasher: h}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"/p/same1", "/p/same2"}, paths(res.Groups[0]))

	assert.Equal(t, 1, h.partial["/p/unique"])
	assert.Zero(t, h.full["/p/unique"], "unique partial digest must skip the full read")
	assert.Equal(t, 1, h.full["/p/same1"])
	assert.Equal(t, int64(1), res.Stats.Eliminated)
	assert.Equal(t, int64(2), res.Stats.FullHashed)
}

func TestResolve_SamePartialDifferentTail(t *testing.T) {
	prefix := bytes.Repeat([]byte("p"), 8192)
	content := map[string][]byte{
		"/q/a": append(slices.Clone(prefix), 'a'),
		"/q/b": append(slices.Clone(prefix), 'b'),
	}
	h := newMemHasher(content)

	res, err := New(Options{Hasher: h}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	assert.Empty(t, res.Groups)
	assert.Equal(t, 1, h.full["/q/a"])
	assert.Equal(t, 1, h.full["/q/b"])
}

func TestResolve_ZeroByteFilesNeedNoReads(t *testing.T) {
	content := map[string][]byte{"/z/one": {}, "/z/two": {}}
	h := newMemHasher(content)

	res, err := New(Options{Hasher: h, Algorithm: digest.SHA256}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"/z/one", "/z/two"}, paths(res.Groups[0]))
	assert.Equal(t, types.Digest(digest.SHA256.Sum(nil)), res.Groups[0].Digest)
	assert.Zero(t, h.reads())
}

func TestResolve_SmallFilesReusePartialDigest(t *testing.T) {
	content := map[string][]byte{"/s/a": []byte("tiny"), "/s/b": []byte("tiny")}
	h := newMemHasher(content)

	res, err := New(Options{Hasher: h}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Zero(t, h.full["/s/a"])
	assert.Equal(t, int64(2), res.Stats.FullReused)
}

func TestResolve_DiscoveryOrderIndependent(t *testing.T) {
	content := map[string][]byte{
		"/o/1": []byte("alpha-content"),
		"/o/2": []byte("omega-content"),
		"/o/3": []byte("alpha-content"),
		"/o/4": []byte("omega-content"),
		"/o/5": []byte("big big big big big"),
		"/o/6": []byte("big big big big big"),
	}
	forward := sortedKeys(content)
	backward := slices.Clone(forward)
	slices.Reverse(backward)

	a, err := New(Options{Hasher: newMemHasher(content), Workers: 1}).Resolve(context.Background(), bucketsOf(content, forward))
	require.NoError(t, err)
	b, err := New(Options{Hasher: newMemHasher(content), Workers: 8}).Resolve(context.Background(), bucketsOf(content, backward))
	require.NoError(t, err)

	require.Len(t, a.Groups, 3)
	require.Equal(t, len(a.Groups), len(b.Groups))
	for i := range a.Groups {
		assert.Equal(t, paths(a.Groups[i]), paths(b.Groups[i]))
	}

	// Larger group first, then equal sizes by first path.
	assert.Equal(t, []string{"/o/5", "/o/6"}, paths(a.Groups[0]))
	assert.Equal(t, []string{"/o/1", "/o/3"}, paths(a.Groups[1]))
	assert.Equal(t, []string{"/o/2", "/o/4"}, paths(a.Groups[2]))
}

func TestResolve_HashErrorExcludesFile(t *testing.T) {
	content := map[string][]byte{
		"/e/a": []byte("same"),
		"/e/b": []byte("same"),
		"/e/c": []byte("same"),
	}
	h := newMemHasher(content)
	h.fail["/e/b"] = errors.New("permission denied")

	res, err := New(Options{Hasher: h}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"/e/a", "/e/c"}, paths(res.Groups[0]))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "/e/b", res.Warnings[0].Path)
	assert.Equal(t, types.WarnHash, res.Warnings[0].Kind)
}

func TestResolve_Cancelled(t *testing.T) {
	content := map[string][]byte{"/c/a": []byte("x"), "/c/b": []byte("x")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Hasher: newMemHasher(content)}).Resolve(ctx, bucketsOf(content, sortedKeys(content)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_MixedExtensionsShareRanges(t *testing.T) {
	body := append(bytes.Repeat([]byte("a"), 6000), bytes.Repeat([]byte("b"), 6000)...)
	content := map[string][]byte{"/m/photo.jpg": body, "/m/photo.bin": slices.Clone(body)}

	policy, err := hashpolicy.New(hashpolicy.WithEntry("jpg", hashpolicy.Single(5000, 0)))
	require.NoError(t, err)

	res, err := New(Options{Hasher: newMemHasher(content), Policy: policy}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, res.Groups, 1, "identical content is grouped across extensions")
}

func TestResolve_Progress(t *testing.T) {
	content := map[string][]byte{"/g/a": []byte("abc"), "/g/b": []byte("abc")}

	var mu sync.Mutex
	var events []Progress
	_, err := New(Options{
		Hasher: newMemHasher(content),
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)

	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, StagePartial, e.Stage)
		assert.Equal(t, int64(2), e.Total)
	}
}

// fakeCache is an in-memory DigestCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][2]types.Digest
	puts    int
}

func (c *fakeCache) Get(rec *types.FileRecord, algorithm, spec string) (types.Digest, types.Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[rec.Path+"|"+algorithm+"|"+spec]
	if !ok {
		return nil, nil
	}
	return e[0], e[1]
}

func (c *fakeCache) Put(rec *types.FileRecord, algorithm, spec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[rec.Path+"|"+algorithm+"|"+spec] = [2]types.Digest{rec.Partial, rec.Full}
	return nil
}

func TestResolve_CacheSkipsReads(t *testing.T) {
	body := bytes.Repeat([]byte("c"), 10_000)
	content := map[string][]byte{"/k/a": body, "/k/b": body}
	cache := &fakeCache{entries: map[string][2]types.Digest{}}

	first := newMemHasher(content)
	res1, err := New(Options{Hasher: first, Cache: cache}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.puts)
	assert.Equal(t, 4, first.reads())

	second := newMemHasher(content)
	res2, err := New(Options{Hasher: second, Cache: cache}).Resolve(context.Background(), bucketsOf(content, sortedKeys(content)))
	require.NoError(t, err)
	assert.Zero(t, second.reads())
	assert.Equal(t, int64(2), res2.Stats.CacheHits)
	assert.Equal(t, paths(res1.Groups[0]), paths(res2.Groups[0]))
}

func TestPipeline_OnDisk(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	x := bytes.Repeat([]byte{1}, 100)
	write("A", x)
	write("sub/B", x)
	write("C", bytes.Repeat([]byte{2}, 100))
	write("D", bytes.Repeat([]byte{3}, 200))

	run := func() []types.DuplicateGroup {
		scan, err := scanner.New(scanner.Options{Root: root}).Scan(context.Background())
		require.NoError(t, err)
		res, err := New(Options{}).Resolve(context.Background(), scan.Buckets)
		require.NoError(t, err)
		return res.Groups
	}

	first := run()
	require.Len(t, first, 1)
	assert.Equal(t, []string{filepath.Join(root, "A"), filepath.Join(root, "sub", "B")}, paths(first[0]))

	second := run()
	require.Len(t, second, 1)
	assert.Equal(t, paths(first[0]), paths(second[0]))
	assert.Equal(t, first[0].Digest, second[0].Digest)
}
