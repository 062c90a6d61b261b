package tuner

import (
	"runtime"
	"testing"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d", resources.CPUCores, runtime.NumCPU())
	}
	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}
	if resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM (%d) > TotalRAM (%d)", resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		resources SystemResources
		want      OptimalConfig
	}{
		{
			name:      "single core, low memory",
			resources: SystemResources{CPUCores: 1, AvailableRAM: 512 * types.MiB},
			want:      OptimalConfig{WalkWorkers: 4, HashWorkers: 1, ChunkSize: 64 << 10},
		},
		{
			name:      "eight cores",
			resources: SystemResources{CPUCores: 8, AvailableRAM: 8 * types.GiB},
			want:      OptimalConfig{WalkWorkers: 16, HashWorkers: 4, ChunkSize: 256 << 10},
		},
		{
			name:      "many cores are capped",
			resources: SystemResources{CPUCores: 128, AvailableRAM: 64 * types.GiB},
			want:      OptimalConfig{WalkWorkers: 32, HashWorkers: 4, ChunkSize: 256 << 10},
		},
		{
			name:      "unknown resources",
			resources: SystemResources{},
			want:      OptimalConfig{WalkWorkers: 4, HashWorkers: 1, ChunkSize: 256 << 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.resources); got != tt.want {
				t.Errorf("Calculate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateWithOverrides(t *testing.T) {
	res := SystemResources{CPUCores: 8, AvailableRAM: 8 * types.GiB}

	tests := []struct {
		name              string
		walk, hash, limit int
		wantWalk          int
		wantHash          int
	}{
		{name: "no overrides, no limit", wantWalk: 16, wantHash: 4},
		{name: "explicit workers", walk: 3, hash: 7, limit: 15, wantWalk: 3, wantHash: 7},
		{name: "capped", walk: 500, hash: 500, wantWalk: 64, wantHash: 64},
		{name: "15 percent of one core", limit: 15, wantWalk: 1, wantHash: 1},
		{name: "5 percent keeps one worker", limit: 5, wantWalk: 1, wantHash: 1},
		{name: "walk override under a limit", walk: 6, limit: 15, wantWalk: 6, wantHash: 1},
		{name: "limit 100 means unlimited", limit: 100, wantWalk: 16, wantHash: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWithOverrides(res, tt.walk, tt.hash, tt.limit)
			if got.WalkWorkers != tt.wantWalk {
				t.Errorf("WalkWorkers = %d, want %d", got.WalkWorkers, tt.wantWalk)
			}
			if got.HashWorkers != tt.wantHash {
				t.Errorf("HashWorkers = %d, want %d", got.HashWorkers, tt.wantHash)
			}
		})
	}
}
