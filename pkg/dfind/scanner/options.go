// Package scanner walks a directory tree in parallel and buckets regular
// files by exact size. Files in single-member buckets cannot have
// duplicates and are dropped before any hashing.
package scanner

import (
	"github.com/jamesainslie/dfind/pkg/dfind/filter"
	"github.com/jamesainslie/dfind/pkg/dfind/throttle"
)

// DefaultIgnoreFile is the gitignore-syntax file read from the scan root.
const DefaultIgnoreFile = ".dfindignore"

// PaceEvery is the number of regular files visited between throttle
// checkpoints. Every directory is also a checkpoint.
const PaceEvery = 64

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Workers is the number of fastwalk workers. Zero lets fastwalk choose.
	Workers int

	// Filter selects candidate files. Nil accepts every regular file.
	Filter *filter.Filter

	// IgnoreFile names a gitignore-syntax file at the root whose rules
	// exclude entries. Empty disables it.
	IgnoreFile string

	// Throttle paces the walk against the CPU ceiling. Nil never waits.
	Throttle throttle.Throttle

	// OnProgress is called periodically with walk progress. It must be
	// safe to call from multiple goroutines.
	OnProgress func(Progress)
}

// Progress is a snapshot of walk counters.
type Progress struct {
	DirsScanned  int64
	FilesScanned int64
	BytesScanned int64
	CurrentPath  string
}

// DefaultOptions returns options that scan the current directory.
func DefaultOptions() Options {
	return Options{
		Root:       ".",
		IgnoreFile: DefaultIgnoreFile,
	}
}

// Validate applies defaults for unset or invalid values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
	if o.Throttle == nil {
		o.Throttle = throttle.Nop{}
	}
	return nil
}
