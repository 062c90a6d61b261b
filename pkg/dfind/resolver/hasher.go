package resolver

import (
	"context"

	"github.com/jamesainslie/dfind/pkg/dfind/digest"
	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// Hasher computes the two digests the resolver compares.
type Hasher interface {
	// Partial digests the byte ranges spec selects for rec.
	Partial(ctx context.Context, rec *types.FileRecord, spec hashpolicy.PartialSpec) (types.Digest, error)

	// Full digests the entire content of rec.
	Full(ctx context.Context, rec *types.FileRecord) (types.Digest, error)
}

// DigestCache remembers digests across runs. Implementations decide
// whether a stored entry is still valid for rec.
type DigestCache interface {
	// Get returns stored digests for rec. partial is nil unless it was
	// computed with the same algorithm and spec; full is nil unless it
	// was computed with the same algorithm.
	Get(rec *types.FileRecord, algorithm, spec string) (partial, full types.Digest)

	// Put stores rec's current digests.
	Put(rec *types.FileRecord, algorithm, spec string) error
}

// ReaderHasher hashes files from disk with a digest.Reader.
type ReaderHasher struct {
	Reader *digest.Reader
}

// Partial implements Hasher.
func (h ReaderHasher) Partial(ctx context.Context, rec *types.FileRecord, spec hashpolicy.PartialSpec) (types.Digest, error) {
	d, _, err := h.Reader.Ranges(ctx, rec.Path, spec.Ranges(rec.Size))
	return d, err
}

// Full implements Hasher.
func (h ReaderHasher) Full(ctx context.Context, rec *types.FileRecord) (types.Digest, error) {
	d, _, err := h.Reader.Full(ctx, rec.Path, rec.Size)
	return d, err
}
