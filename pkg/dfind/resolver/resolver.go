// Package resolver confirms duplicates inside size buckets in two passes:
// a cheap partial digest over policy-selected byte ranges, then a full
// digest for files whose partial digest is shared. Files with a unique
// partial digest are never read in full.
package resolver

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/dfind/pkg/dfind/digest"
	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/throttle"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var logger = logging.Get("resolver")

// Stage identifies a hashing pass.
type Stage int

const (
	StagePartial Stage = iota
	StageFull
)

func (s Stage) String() string {
	if s == StageFull {
		return "full"
	}
	return "partial"
}

// Progress reports hashing progress within one stage.
type Progress struct {
	Stage Stage
	Done  int64
	Total int64
	Bytes int64
}

// Options configures a Resolver.
type Options struct {
	// Policy selects partial ranges. Nil uses hashpolicy.Default().
	Policy *hashpolicy.Policy

	// Algorithm names the digest. It keys the cache and digests empty
	// files. Empty means digest.DefaultAlgorithm.
	Algorithm digest.Algorithm

	// Hasher computes digests. Nil reads files with a digest.Reader for
	// Algorithm, paced by Throttle.
	Hasher Hasher

	// Throttle paces the default Hasher. Nil means no pacing.
	Throttle throttle.Throttle

	// Workers bounds concurrent hashing. Zero uses min(NumCPU, 4).
	Workers int

	// Cache short-circuits digests of unchanged files. Optional.
	Cache DigestCache

	// OnProgress is called after every hashed file, from worker
	// goroutines.
	OnProgress func(Progress)
}

// Stats counts the work done by one Resolve call.
type Stats struct {
	PartialHashed int64
	FullHashed    int64
	FullReused    int64
	CacheHits     int64
	Eliminated    int64
	BytesRead     int64
}

// Result holds confirmed duplicate groups and hashing warnings.
type Result struct {
	// Groups are ordered by size descending, then first member path.
	Groups []types.DuplicateGroup

	// Warnings lists files that could not be hashed.
	Warnings []types.ScanWarning

	Stats   Stats
	Elapsed time.Duration
}

// Resolver runs the partial and full passes.
type Resolver struct {
	opts Options
}

// New creates a Resolver, filling in defaults.
func New(opts Options) *Resolver {
	if opts.Policy == nil {
		opts.Policy = hashpolicy.Default()
	}
	if opts.Algorithm == "" {
		opts.Algorithm = digest.DefaultAlgorithm
	}
	if opts.Throttle == nil {
		opts.Throttle = throttle.Nop{}
	}
	if opts.Hasher == nil {
		opts.Hasher = ReaderHasher{Reader: digest.NewReader(opts.Algorithm, digest.WithThrottle(opts.Throttle))}
	}
	if opts.Workers <= 0 {
		opts.Workers = min(runtime.NumCPU(), 4)
	}
	return &Resolver{opts: opts}
}

// job is one file to hash within one bucket.
type job struct {
	rec   *types.FileRecord
	spec  hashpolicy.PartialSpec
	fp    string
	dirty bool
}

// run tracks the mutable state of one Resolve call.
type run struct {
	r *Resolver

	stats    Stats
	warnMu   sync.Mutex
	warnings []types.ScanWarning
}

// Resolve confirms duplicates in every bucket with two or more members.
// Hash failures become warnings and exclude the file; only cancellation
// aborts.
func (r *Resolver) Resolve(ctx context.Context, buckets types.SizeBuckets) (*Result, error) {
	start := time.Now()
	rn := &run{r: r}
	algo := r.opts.Algorithm.String()

	var groups []types.DuplicateGroup
	var partialJobs []*job
	byBucket := make(map[int64][]*job)

	for _, bucket := range buckets.Candidates() {
		if bucket.Size == 0 {
			groups = append(groups, rn.emptyGroup(bucket))
			continue
		}

		exts := make([]string, len(bucket.Files))
		for i, rec := range bucket.Files {
			exts[i] = rec.Ext
		}
		spec := r.opts.Policy.SpecForAll(exts)
		fp := spec.Fingerprint()

		for _, rec := range bucket.Files {
			j := &job{rec: rec, spec: spec, fp: fp}
			rn.fromCache(j, algo)
			partialJobs = append(partialJobs, j)
			byBucket[bucket.Size] = append(byBucket[bucket.Size], j)
		}
	}

	err := rn.pass(ctx, StagePartial, partialJobs, func(ctx context.Context, j *job) (int64, error) {
		if j.rec.Partial != nil {
			return 0, nil
		}
		d, err := r.opts.Hasher.Partial(ctx, j.rec, j.spec)
		if err != nil {
			return 0, err
		}
		j.rec.Partial = d
		j.dirty = true
		atomic.AddInt64(&rn.stats.PartialHashed, 1)
		return rangeBytes(j.spec, j.rec.Size), nil
	})
	if err != nil {
		return nil, err
	}

	// Partial grouping: unique partial digests end here.
	var fullJobs []*job
	var survivors [][]*job
	for _, size := range sortedSizes(byBucket) {
		jobs := byBucket[size]
		for _, members := range groupJobs(jobs, func(rec *types.FileRecord) types.Digest { return rec.Partial }) {
			survivors = append(survivors, members)
			for _, j := range members {
				if j.rec.Full != nil {
					continue
				}
				if j.spec.Covers(size) {
					j.rec.Full = j.rec.Partial
					rn.stats.FullReused++
					continue
				}
				fullJobs = append(fullJobs, j)
			}
		}
	}
	rn.stats.Eliminated = int64(len(partialJobs)) - countJobs(survivors) - int64(len(rn.warnings))

	err = rn.pass(ctx, StageFull, fullJobs, func(ctx context.Context, j *job) (int64, error) {
		d, err := r.opts.Hasher.Full(ctx, j.rec)
		if err != nil {
			return 0, err
		}
		j.rec.Full = d
		j.dirty = true
		atomic.AddInt64(&rn.stats.FullHashed, 1)
		return j.rec.Size, nil
	})
	if err != nil {
		return nil, err
	}

	for _, members := range survivors {
		for _, sub := range groupJobs(members, func(rec *types.FileRecord) types.Digest { return rec.Full }) {
			g := types.DuplicateGroup{Size: sub[0].rec.Size, Digest: sub[0].rec.Full}
			for _, j := range sub {
				g.Files = append(g.Files, j.rec)
			}
			groups = append(groups, g)
		}
	}

	rn.saveCache(partialJobs, algo)
	types.SortGroups(groups)

	res := &Result{
		Groups:   groups,
		Warnings: rn.sortedWarnings(),
		Stats:    rn.stats,
		Elapsed:  time.Since(start),
	}
	logger.Info("resolve complete",
		"groups", len(groups),
		"partial", res.Stats.PartialHashed,
		"full", res.Stats.FullHashed,
		"reused", res.Stats.FullReused,
		"cache_hits", res.Stats.CacheHits,
		"eliminated", res.Stats.Eliminated,
		"warnings", len(res.Warnings),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}

// emptyGroup builds the group for a bucket of zero-byte files without
// reading them.
func (rn *run) emptyGroup(bucket *types.SizeBucket) types.DuplicateGroup {
	empty := types.Digest(rn.r.opts.Algorithm.Sum(nil))
	files := make([]*types.FileRecord, len(bucket.Files))
	for i, rec := range bucket.Files {
		rec.Partial, rec.Full = empty, empty
		files[i] = rec
	}
	return types.DuplicateGroup{Size: 0, Digest: empty, Files: files}
}

// pass hashes jobs on a bounded pool. Errors other than cancellation
// become warnings.
func (rn *run) pass(ctx context.Context, stage Stage, jobs []*job, hash func(context.Context, *job) (int64, error)) error {
	if len(jobs) == 0 {
		return ctx.Err()
	}

	total := int64(len(jobs))
	var done atomic.Int64
	logger.Debug("pass started", "stage", stage, "files", total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rn.r.opts.Workers)

	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := hash(gctx, j)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return err
				}
				rn.addWarning(j.rec.Path, stage, err)
			}
			atomic.AddInt64(&rn.stats.BytesRead, n)
			if rn.r.opts.OnProgress != nil {
				rn.r.opts.OnProgress(Progress{
					Stage: stage,
					Done:  done.Add(1),
					Total: total,
					Bytes: atomic.LoadInt64(&rn.stats.BytesRead),
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (rn *run) addWarning(path string, stage Stage, err error) {
	logger.Warn("hash failed", "path", path, "stage", stage, "error", err)

	rn.warnMu.Lock()
	rn.warnings = append(rn.warnings, types.ScanWarning{Path: path, Kind: types.WarnHash, Err: err})
	rn.warnMu.Unlock()
}

func (rn *run) sortedWarnings() []types.ScanWarning {
	return sortWarnings(rn.warnings)
}

// fromCache pre-fills digests that are still valid.
func (rn *run) fromCache(j *job, algo string) {
	if rn.r.opts.Cache == nil {
		return
	}
	partial, full := rn.r.opts.Cache.Get(j.rec, algo, j.fp)
	if partial == nil && full == nil {
		return
	}
	rn.stats.CacheHits++
	if partial != nil {
		j.rec.Partial = partial
	}
	if full != nil {
		j.rec.Full = full
	}
}

// saveCache stores digests computed in this run.
func (rn *run) saveCache(jobs []*job, algo string) {
	if rn.r.opts.Cache == nil {
		return
	}
	for _, j := range jobs {
		if !j.dirty {
			continue
		}
		if err := rn.r.opts.Cache.Put(j.rec, algo, j.fp); err != nil {
			logger.Warn("cache write failed", "path", j.rec.Path, "error", err)
			return
		}
	}
}
