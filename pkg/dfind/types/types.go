// Package types provides core data types for the dfind duplicate finder.
// It includes the file records produced by the scanner, the size buckets and
// duplicate groups that flow through the resolver, and utility functions for
// parsing and formatting file sizes.
package types

import (
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Digest is the output of a content hash.
type Digest []byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Short returns the first 12 hex characters, for logs and reports.
func (d Digest) Short() string {
	s := d.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// key returns the digest as a comparable map key.
func (d Digest) key() string {
	return string(d)
}

// FileRecord describes a regular file visited by the scanner.
// Path, Size, ModTime and Ext are fixed at scan time. Partial and Full are
// filled in lazily by the resolver and written at most once.
type FileRecord struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`

	// Ext is the lowercase file extension without the leading dot.
	Ext string `json:"ext"`

	// Partial is the digest over the policy-selected byte ranges.
	Partial Digest `json:"partial,omitempty"`

	// Full is the digest over the entire file content.
	Full Digest `json:"full,omitempty"`
}

// NewFileRecord builds a record for path, deriving Ext from the file name.
func NewFileRecord(path string, size int64, modTime time.Time) *FileRecord {
	return &FileRecord{
		Path:    path,
		Size:    size,
		ModTime: modTime,
		Ext:     NormalizeExt(filepath.Ext(path)),
	}
}

// HumanSize returns the file size formatted as a human-readable string.
func (f *FileRecord) HumanSize() string {
	return FormatSize(f.Size)
}

// NormalizeExt lowercases an extension and strips any leading dots.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
}

// SizeBucket holds every scanned file sharing one exact byte size.
type SizeBucket struct {
	Size  int64
	Files []*FileRecord
}

// SizeBuckets maps an exact byte size to its bucket.
type SizeBuckets map[int64]*SizeBucket

// Add places a record in the bucket for its size.
func (b SizeBuckets) Add(rec *FileRecord) {
	bucket, ok := b[rec.Size]
	if !ok {
		bucket = &SizeBucket{Size: rec.Size}
		b[rec.Size] = bucket
	}
	bucket.Files = append(bucket.Files, rec)
}

// Prune drops buckets with fewer than two members and sorts the members of
// the rest by path. It returns the number of buckets removed.
func (b SizeBuckets) Prune() int {
	removed := 0
	for size, bucket := range b {
		if len(bucket.Files) < 2 {
			delete(b, size)
			removed++
			continue
		}
		SortRecords(bucket.Files)
	}
	return removed
}

// Candidates returns buckets with at least two members, largest size first.
func (b SizeBuckets) Candidates() []*SizeBucket {
	out := make([]*SizeBucket, 0, len(b))
	for _, bucket := range b {
		if len(bucket.Files) >= 2 {
			out = append(out, bucket)
		}
	}
	slices.SortFunc(out, func(x, y *SizeBucket) int {
		return cmp.Compare(y.Size, x.Size)
	})
	return out
}

// FileCount returns the total number of records across all buckets.
func (b SizeBuckets) FileCount() int {
	n := 0
	for _, bucket := range b {
		n += len(bucket.Files)
	}
	return n
}

// DuplicateGroup is a confirmed set of two or more files with identical
// size and identical full-content digest.
type DuplicateGroup struct {
	// Size is the byte size shared by every member.
	Size int64 `json:"size"`

	// Digest is the full-content digest shared by every member.
	Digest Digest `json:"digest"`

	// Files are the members, ordered by path.
	Files []*FileRecord `json:"files"`
}

// Reclaimable returns the bytes that would be freed by keeping one copy.
func (g *DuplicateGroup) Reclaimable() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// SortRecords orders records by path (lexical byte order).
func SortRecords(recs []*FileRecord) {
	slices.SortFunc(recs, func(a, b *FileRecord) int {
		return cmp.Compare(a.Path, b.Path)
	})
}

// SortGroups orders groups by size descending, then by the path of the
// first member so the order is stable for equal sizes.
func SortGroups(groups []DuplicateGroup) {
	for i := range groups {
		SortRecords(groups[i].Files)
	}
	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Files[0].Path, b.Files[0].Path)
	})
}

// GroupByDigest partitions records by the digest returned from key and
// drops every partition with fewer than two members. Partitions come back
// ordered by their first member's path.
func GroupByDigest(recs []*FileRecord, key func(*FileRecord) Digest) [][]*FileRecord {
	byKey := make(map[string][]*FileRecord)
	for _, rec := range recs {
		d := key(rec)
		if d == nil {
			continue
		}
		byKey[d.key()] = append(byKey[d.key()], rec)
	}

	out := make([][]*FileRecord, 0, len(byKey))
	for _, members := range byKey {
		if len(members) < 2 {
			continue
		}
		SortRecords(members)
		out = append(out, members)
	}
	slices.SortFunc(out, func(a, b []*FileRecord) int {
		return cmp.Compare(a[0].Path, b[0].Path)
	})
	return out
}

// FolderStats summarizes the regular files directly inside one directory.
type FolderStats struct {
	Path  string `json:"path"`
	Files int64  `json:"files"`
	Bytes int64  `json:"bytes"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "5KB", "1.5GiB".
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT](?:i?B)?|B)?\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Multipliers are binary: KB, K and KiB all mean 1024 bytes.
// It supports the following formats:
//   - Plain bytes: "1024", "0", "512B"
//   - Kilobytes: "5K", "5KB", "5kb", "5KiB"
//   - Megabytes: "1M", "1MB", "1mb", "1MiB"
//   - Gigabytes: "2G", "2GB", "2GiB"
//   - Terabytes: "1T", "1TB", "1TiB"
//
// Decimal values are truncated to the nearest byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	if !strings.Contains(matches[1], ".") {
		n, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil || n > math.MaxInt64/multiplier {
			return 0, fmt.Errorf("%w: %q overflows int64", ErrInvalidSize, s)
		}
		return n * multiplier, nil
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	// 2^63 is the first float64 past MaxInt64.
	total := value * float64(multiplier)
	if total >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows int64", ErrInvalidSize, s)
	}
	return int64(total), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// SortWarnings orders warnings by path, keeping the relative order of
// warnings for the same path.
func SortWarnings(ws []ScanWarning) {
	slices.SortStableFunc(ws, func(a, b ScanWarning) int {
		return cmp.Compare(a.Path, b.Path)
	})
}
