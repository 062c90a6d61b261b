package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/throttle"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// DefaultChunkSize is the read size between throttle checkpoints.
const DefaultChunkSize = 256 << 10

// ErrFileChanged is returned when a file is shorter than expected, which
// means it was truncated or replaced after it was scanned.
var ErrFileChanged = errors.New("file changed during hashing")

// Reader digests files in chunks, pacing after each chunk.
type Reader struct {
	algo     Algorithm
	throttle throttle.Throttle
	chunk    int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithThrottle paces reads with t.
func WithThrottle(t throttle.Throttle) ReaderOption {
	return func(r *Reader) {
		if t != nil {
			r.throttle = t
		}
	}
}

// WithChunkSize sets the read size between throttle checkpoints.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = n
		}
	}
}

// NewReader returns a Reader for algo.
func NewReader(algo Algorithm, opts ...ReaderOption) *Reader {
	r := &Reader{
		algo:     algo,
		throttle: throttle.Nop{},
		chunk:    DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Algorithm returns the reader's algorithm.
func (r *Reader) Algorithm() Algorithm {
	return r.algo
}

// Empty returns the digest of zero bytes.
func (r *Reader) Empty() types.Digest {
	return r.algo.Sum(nil)
}

// Ranges digests the concatenation of ranges, in order. It returns the
// digest and the number of bytes read.
func (r *Reader) Ranges(ctx context.Context, path string, ranges []hashpolicy.Range) (d types.Digest, n int64, err error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	h := r.algo.New()
	buf := make([]byte, r.chunk)
	for _, rg := range ranges {
		read, err := r.copy(ctx, h, io.NewSectionReader(f, rg.Offset, rg.Length), buf)
		n += read
		if err != nil {
			return nil, n, err
		}
		if read != rg.Length {
			return nil, n, fmt.Errorf("%w: range %d+%d returned %d bytes", ErrFileChanged, rg.Offset, rg.Length, read)
		}
	}
	return h.Sum(nil), n, nil
}

// Full digests the whole file, which must be exactly size bytes long.
func (r *Reader) Full(ctx context.Context, path string, size int64) (d types.Digest, n int64, err error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	h := r.algo.New()
	// Read one byte past size so growth is detected as well as truncation.
	n, err = r.copy(ctx, h, io.LimitReader(f, size+1), make([]byte, r.chunk))
	if err != nil {
		return nil, n, err
	}
	if n != size {
		return nil, n, fmt.Errorf("%w: expected %d bytes, read %d", ErrFileChanged, size, n)
	}
	return h.Sum(nil), n, nil
}

// copy streams src into w one chunk at a time, calling Pace after each
// chunk that produced data.
func (r *Reader) copy(ctx context.Context, w io.Writer, src io.Reader, buf []byte) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
			total += int64(n)
			if err := r.throttle.Pace(ctx); err != nil {
				return total, err
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
