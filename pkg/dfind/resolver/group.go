package resolver

import (
	"cmp"
	"maps"
	"slices"

	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// groupJobs partitions jobs by the digest key returns, dropping
// singletons and jobs without a digest.
func groupJobs(jobs []*job, key func(*types.FileRecord) types.Digest) [][]*job {
	byRec := make(map[*types.FileRecord]*job, len(jobs))
	recs := make([]*types.FileRecord, len(jobs))
	for i, j := range jobs {
		byRec[j.rec] = j
		recs[i] = j.rec
	}

	parts := types.GroupByDigest(recs, key)
	out := make([][]*job, len(parts))
	for i, part := range parts {
		out[i] = make([]*job, len(part))
		for k, rec := range part {
			out[i][k] = byRec[rec]
		}
	}
	return out
}

func countJobs(groups [][]*job) int64 {
	var n int64
	for _, g := range groups {
		n += int64(len(g))
	}
	return n
}

// sortedSizes returns the map keys largest first.
func sortedSizes(m map[int64][]*job) []int64 {
	sizes := slices.Collect(maps.Keys(m))
	slices.SortFunc(sizes, func(a, b int64) int { return cmp.Compare(b, a) })
	return sizes
}

// rangeBytes is the number of bytes a partial digest reads.
func rangeBytes(spec hashpolicy.PartialSpec, size int64) int64 {
	var n int64
	for _, r := range spec.Ranges(size) {
		n += r.Length
	}
	return n
}

func sortWarnings(ws []types.ScanWarning) []types.ScanWarning {
	out := slices.Clone(ws)
	types.SortWarnings(out)
	return out
}
