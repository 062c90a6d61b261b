// Package filter decides which walked entries become candidates for
// duplicate detection. It filters by minimum size, extension allow-list and
// exclude glob patterns.
package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// ErrInvalidPattern indicates an exclude pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// TypeGroups maps group names usable in place of extensions to the
// extensions they stand for.
var TypeGroups = map[string][]string{
	"video":    {"mp4", "mkv", "avi", "mov", "wmv", "flv", "webm", "m4v", "mpeg", "mpg"},
	"audio":    {"mp3", "flac", "wav", "aac", "ogg", "wma", "m4a", "opus", "aiff"},
	"image":    {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp", "heic", "heif", "raw"},
	"archive":  {"zip", "tar", "gz", "bz2", "xz", "7z", "rar", "tgz"},
	"document": {"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "txt", "md"},
}

// Filter holds compiled selection criteria. A zero Filter accepts
// everything.
type Filter struct {
	// MinSize is the minimum file size in bytes.
	MinSize int64

	// Extensions, when non-empty, is the allow-list of normalized
	// extensions (lowercase, no dot).
	Extensions []string

	// Exclude holds the source patterns; compiled holds their globs.
	Exclude  []string
	compiled []glob.Glob
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// WithMinSize sets the minimum file size. Negative values become 0.
func WithMinSize(n int64) Option {
	return func(f *Filter) {
		f.MinSize = max(n, 0)
	}
}

// WithExtensions sets the extension allow-list. Entries are normalized and
// group names from TypeGroups are expanded.
func WithExtensions(exts ...string) Option {
	return func(f *Filter) {
		var out []string
		for _, ext := range exts {
			ext = types.NormalizeExt(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if group, ok := TypeGroups[ext]; ok {
				out = append(out, group...)
				continue
			}
			out = append(out, ext)
		}
		slices.Sort(out)
		f.Extensions = slices.Compact(out)
	}
}

// WithExclude adds exclude glob patterns. A pattern is matched against
// both the entry's base name and its slash-separated path relative to the
// scan root, so "*.tmp" excludes temp files anywhere and "build/**"
// excludes one subtree.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				f.Exclude = append(f.Exclude, p)
			}
		}
	}
}

// New builds a Filter, compiling every exclude pattern.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}

	f.compiled = make([]glob.Glob, 0, len(f.Exclude))
	for _, p := range f.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		f.compiled = append(f.compiled, g)
	}
	return f, nil
}

// MatchFile reports whether a regular file is a candidate. rel is the path
// relative to the scan root.
func (f *Filter) MatchFile(rel string, size int64, ext string) bool {
	if f == nil {
		return true
	}
	if size < f.MinSize {
		return false
	}
	if len(f.Extensions) > 0 {
		if _, found := slices.BinarySearch(f.Extensions, types.NormalizeExt(ext)); !found {
			return false
		}
	}
	return !f.excluded(rel)
}

// SkipDir reports whether a directory should not be descended into.
func (f *Filter) SkipDir(rel string) bool {
	if f == nil || rel == "." || rel == "" {
		return false
	}
	return f.excluded(rel)
}

func (f *Filter) excluded(rel string) bool {
	if len(f.compiled) == 0 {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	for _, g := range f.compiled {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Active reports whether any criterion is set.
func (f *Filter) Active() bool {
	return f != nil && (f.MinSize > 0 || len(f.Extensions) > 0 || len(f.compiled) > 0)
}
