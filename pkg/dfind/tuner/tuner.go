// Package tuner detects system resources and derives worker counts and
// read sizes for walking and hashing.
package tuner

import "github.com/jamesainslie/dfind/pkg/dfind/types"

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available RAM in bytes. It may be an estimate.
	AvailableRAM int64
}

// Worker and buffer limits.
const (
	maxWorkers     = 64
	minWalkWorkers = 4
	maxWalkWorkers = 32

	// defaultHashWorkers caps hashing parallelism; past a few readers a
	// single disk stops getting faster.
	defaultHashWorkers = 4

	smallChunk = 64 << 10
	largeChunk = 256 << 10

	// lowMemory is the available RAM below which reads use smallChunk.
	lowMemory = 1 * types.GiB
)

// OptimalConfig is the tuned configuration for the detected resources.
type OptimalConfig struct {
	// WalkWorkers is the number of directory walking workers.
	WalkWorkers int

	// HashWorkers is the number of concurrent hashing workers.
	HashWorkers int

	// ChunkSize is the read size between throttle checkpoints.
	ChunkSize int
}

// Calculate returns the configuration for resources:
//   - WalkWorkers: 2×NumCPU within [4, 32]; walking is metadata-bound
//   - HashWorkers: min(NumCPU, 4)
//   - ChunkSize: 256 KiB, or 64 KiB when available RAM is under 1 GiB
func Calculate(resources SystemResources) OptimalConfig {
	cores := max(resources.CPUCores, 1)

	chunk := largeChunk
	if resources.AvailableRAM > 0 && resources.AvailableRAM < lowMemory {
		chunk = smallChunk
	}

	return OptimalConfig{
		WalkWorkers: min(max(cores*2, minWalkWorkers), maxWalkWorkers),
		HashWorkers: min(cores, defaultHashWorkers),
		ChunkSize:   chunk,
	}
}

// CalculateWithOverrides applies explicit worker counts on top of
// Calculate. Values <= 0 keep the calculated default; all are capped at 64.
// A CPU limit below 100 percent is a share of a single core, so it also
// drops WalkWorkers and HashWorkers to one unless they are set.
func CalculateWithOverrides(resources SystemResources, walkWorkers, hashWorkers, cpuLimit int) OptimalConfig {
	cfg := Calculate(resources)
	limited := cpuLimit > 0 && cpuLimit < 100

	if walkWorkers > 0 {
		cfg.WalkWorkers = min(walkWorkers, maxWorkers)
	} else if limited {
		cfg.WalkWorkers = 1
	}
	if hashWorkers > 0 {
		cfg.HashWorkers = min(hashWorkers, maxWorkers)
	} else if limited {
		cfg.HashWorkers = 1
	}
	return cfg
}
