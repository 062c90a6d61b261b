// Package hashpolicy maps file extensions to the byte ranges hashed during
// the partial pass of duplicate detection.
//
// A policy is built once from configuration, validated eagerly, and is
// read-only afterwards. Lookups are pure:
//
//	p, err := hashpolicy.Parse(`{"jpg":"5KB","mp4":["1MB","1MB"]}`)
//	if err != nil {
//	    return err
//	}
//	ranges := p.SpecFor("MP4").Ranges(fileSize)
package hashpolicy

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// DefaultPartialSize is the number of leading bytes hashed for extensions
// that have no entry in the table.
const DefaultPartialSize = 4 * types.KiB

// Kind tags which variant a PartialSpec holds.
type Kind int

const (
	// SingleRange reads Length bytes starting at Offset.
	SingleRange Kind = iota
	// DualRange reads Head bytes from the start then Tail bytes from the end.
	DualRange
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case SingleRange:
		return "single"
	case DualRange:
		return "dual"
	default:
		return "unknown"
	}
}

// Range is a byte range within a file.
type Range struct {
	Offset int64
	Length int64
}

// End returns the offset one past the last byte of the range.
func (r Range) End() int64 {
	return r.Offset + r.Length
}

// PartialSpec selects the bytes hashed in the partial pass.
// Only the fields belonging to Kind are meaningful.
type PartialSpec struct {
	Kind Kind

	// SingleRange fields.
	Offset int64
	Length int64

	// DualRange fields.
	Head int64
	Tail int64
}

// Single returns a spec reading length bytes from offset.
func Single(length, offset int64) PartialSpec {
	return PartialSpec{Kind: SingleRange, Length: length, Offset: offset}
}

// Dual returns a spec reading head bytes from the start and tail bytes
// from the end.
func Dual(head, tail int64) PartialSpec {
	return PartialSpec{Kind: DualRange, Head: head, Tail: tail}
}

// Validate reports whether the partial spec can be used.
func (s PartialSpec) Validate() error {
	switch s.Kind {
	case SingleRange:
		if s.Length <= 0 {
			return fmt.Errorf("partial size must be positive, got %d", s.Length)
		}
		if s.Offset < 0 {
			return fmt.Errorf("partial offset cannot be negative, got %d", s.Offset)
		}
	case DualRange:
		if s.Head <= 0 || s.Tail <= 0 {
			return fmt.Errorf("head and tail sizes must be positive, got %d and %d", s.Head, s.Tail)
		}
	default:
		return fmt.Errorf("unknown partial spec kind %d", s.Kind)
	}
	return nil
}

// Ranges resolves the partial spec against a file of the given size. Ranges are
// clamped to the file; a range that falls entirely past the end is
// returned with zero length so every file of the same size reads the same
// shape. DualRange always yields the head range first.
func (s PartialSpec) Ranges(size int64) []Range {
	switch s.Kind {
	case DualRange:
		head := Range{Offset: 0, Length: min(s.Head, size)}
		tailStart := max(size-s.Tail, 0)
		tail := Range{Offset: tailStart, Length: size - tailStart}
		return []Range{head, tail}
	default:
		off := min(s.Offset, size)
		return []Range{{Offset: off, Length: min(s.Length, size-off)}}
	}
}

// Covers reports whether the partial spec reads the whole file exactly once,
// starting at offset zero. When it does, the partial digest equals the
// full digest of the file.
func (s PartialSpec) Covers(size int64) bool {
	return s.Kind == SingleRange && s.Offset == 0 && s.Length >= size
}

// Fingerprint returns a stable identifier for the partial spec, e.g. "dual:[4,4]".
func (s PartialSpec) Fingerprint() string {
	return s.Kind.String() + ":" + s.String()
}

// String renders the partial spec in the configuration encoding.
func (s PartialSpec) String() string {
	switch s.Kind {
	case DualRange:
		return fmt.Sprintf("[%d,%d]", s.Head, s.Tail)
	default:
		if s.Offset != 0 {
			return fmt.Sprintf("%d@%d", s.Length, s.Offset)
		}
		return fmt.Sprintf("%d", s.Length)
	}
}

// Policy is an immutable extension → PartialSpec table.
type Policy struct {
	table    map[string]PartialSpec
	fallback PartialSpec
}

// Option is a functional option for configuring a Policy.
type Option func(*Policy)

// WithDefault sets the partial spec used for extensions missing from the table.
func WithDefault(spec PartialSpec) Option {
	return func(p *Policy) {
		p.fallback = spec
	}
}

// WithEntry adds or replaces the partial spec for one extension.
func WithEntry(ext string, spec PartialSpec) Option {
	return func(p *Policy) {
		p.table[types.NormalizeExt(ext)] = spec
	}
}

// New builds a policy and validates every entry.
func New(opts ...Option) (*Policy, error) {
	p := &Policy{
		table:    make(map[string]PartialSpec),
		fallback: Single(DefaultPartialSize, 0),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.fallback.Validate(); err != nil {
		return nil, fmt.Errorf("default spec: %w", err)
	}
	for ext, spec := range p.table {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("extension %q: %w", ext, err)
		}
	}
	return p, nil
}

// Default returns a policy with no per-extension entries.
func Default() *Policy {
	p, _ := New()
	return p
}

// SpecFor returns the partial spec for an extension. The extension is matched
// case-insensitively, with or without its leading dot.
func (p *Policy) SpecFor(ext string) PartialSpec {
	if spec, ok := p.table[types.NormalizeExt(ext)]; ok {
		return spec
	}
	return p.fallback
}

// Fallback returns the partial spec used for extensions missing from the table.
func (p *Policy) Fallback() PartialSpec {
	return p.fallback
}

// SpecForAll returns the partial spec shared by every extension in exts. When the
// extensions map to different specs it returns the fallback, so that files
// of one size are always compared over the same byte ranges.
func (p *Policy) SpecForAll(exts []string) PartialSpec {
	if len(exts) == 0 {
		return p.fallback
	}
	spec := p.SpecFor(exts[0])
	for _, ext := range exts[1:] {
		if p.SpecFor(ext) != spec {
			return p.fallback
		}
	}
	return spec
}

// Fingerprint returns a stable identifier of the partial spec applied to ext.
// Cached partial digests are only reused when the fingerprint matches.
func (p *Policy) Fingerprint(ext string) string {
	return p.SpecFor(ext).Fingerprint()
}

// Extensions returns the configured extensions in sorted order.
func (p *Policy) Extensions() []string {
	return slices.Sorted(maps.Keys(p.table))
}

// Len returns the number of configured extensions.
func (p *Policy) Len() int {
	return len(p.table)
}

// Describe renders the table for diagnostics, e.g. "jpg=5120 mp4=[1048576,1048576]".
func (p *Policy) Describe() string {
	var b strings.Builder
	for i, ext := range p.Extensions() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(ext)
		b.WriteByte('=')
		b.WriteString(p.table[ext].String())
	}
	return b.String()
}
