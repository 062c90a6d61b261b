package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Empty(t *testing.T) {
	f, err := New()
	require.NoError(t, err)

	assert.False(t, f.Active())
	assert.True(t, f.MatchFile("a/b.txt", 0, "txt"))
	assert.False(t, f.SkipDir("a"))
}

func TestNilFilterAcceptsAll(t *testing.T) {
	var f *Filter
	assert.True(t, f.MatchFile("x", 1, "go"))
	assert.False(t, f.SkipDir("x"))
	assert.False(t, f.Active())
}

func TestWithMinSize(t *testing.T) {
	tests := []struct {
		name string
		min  int64
		size int64
		want bool
	}{
		{name: "below", min: 100, size: 99, want: false},
		{name: "equal", min: 100, size: 100, want: true},
		{name: "negative min", min: -1, size: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(WithMinSize(tt.min))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.MatchFile("f", tt.size, ""))
		})
	}
}

func TestWithExtensions(t *testing.T) {
	f, err := New(WithExtensions(".JPG", "png", " ", "png"))
	require.NoError(t, err)

	assert.Equal(t, []string{"jpg", "png"}, f.Extensions)
	assert.True(t, f.MatchFile("a.jpg", 1, "jpg"))
	assert.True(t, f.MatchFile("a.PNG", 1, ".PNG"))
	assert.False(t, f.MatchFile("a.gif", 1, "gif"))
	assert.False(t, f.MatchFile("noext", 1, ""))
}

func TestWithExtensions_TypeGroups(t *testing.T) {
	f, err := New(WithExtensions("video", "txt"))
	require.NoError(t, err)

	assert.True(t, f.MatchFile("m.mkv", 1, "mkv"))
	assert.True(t, f.MatchFile("n.txt", 1, "txt"))
	assert.False(t, f.MatchFile("p.jpg", 1, "jpg"))
}

func TestWithExclude(t *testing.T) {
	f, err := New(WithExclude("*.tmp", "node_modules", "build/**"))
	require.NoError(t, err)

	assert.False(t, f.MatchFile("deep/dir/x.tmp", 1, "tmp"))
	assert.True(t, f.MatchFile("deep/dir/x.txt", 1, "txt"))
	assert.False(t, f.MatchFile("build/out/bin", 1, ""))

	assert.True(t, f.SkipDir("web/node_modules"))
	assert.False(t, f.SkipDir("web/src"))
	assert.False(t, f.SkipDir("."))
}

func TestWithExclude_InvalidPattern(t *testing.T) {
	_, err := New(WithExclude("[unclosed"))
	assert.ErrorIs(t, err, ErrInvalidPattern)
}
