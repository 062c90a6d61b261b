package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/dfind/pkg/dfind/cache"
	"github.com/jamesainslie/dfind/pkg/dfind/config"
	"github.com/jamesainslie/dfind/pkg/dfind/digest"
	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/recent"
	"github.com/jamesainslie/dfind/pkg/dfind/report"
	"github.com/jamesainslie/dfind/pkg/dfind/resolver"
	"github.com/jamesainslie/dfind/pkg/dfind/scanner"
	"github.com/jamesainslie/dfind/pkg/dfind/throttle"
	"github.com/jamesainslie/dfind/pkg/dfind/tuner"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var logger = logging.Get("cli")

// errCancelled is returned when the user interrupts a scan.
var errCancelled = errors.New("scan cancelled")

// runScan is the root command handler.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	recents, err := recent.Open(recent.NewFileStore(cfg.ConfigFile), cfg.MaxRecentFolders)
	if err != nil {
		return err
	}

	var folder string
	if len(args) > 0 {
		if folder, err = config.ExpandPath(args[0]); err != nil {
			return err
		}
	} else {
		folder, err = chooseRecentFolder(cmd.InOrStdin(), cmd.OutOrStdout(), recents)
		if err != nil {
			return err
		}
		if folder == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No folder selected.")
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = executeScan(ctx, cfg, folder, scanRun{
		Out:      cmd.OutOrStdout(),
		Err:      cmd.ErrOrStderr(),
		Quiet:    quiet,
		Progress: !quiet && !noProgress,
		UseCache: cfg.CacheEnabled && !noCache,
		Recent:   recents,
	})
	return err
}

// scanRun carries the per-invocation choices that are not configuration.
type scanRun struct {
	Out      io.Writer
	Err      io.Writer
	Quiet    bool
	Progress bool
	UseCache bool
	Recent   *recent.List
}

func (o scanRun) info(format string, args ...interface{}) {
	if !o.Quiet {
		fmt.Fprintf(o.Out, format+"\n", args...)
	}
}

// executeScan runs scan, resolve and report for one folder.
func executeScan(ctx context.Context, cfg *config.Config, folder string, o scanRun) (*report.Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.With("run", runID)

	root, err := scanner.ValidateRoot(folder)
	if err != nil {
		return nil, err
	}

	if o.Recent != nil {
		if err := o.Recent.Push(root); err != nil {
			return nil, fmt.Errorf("updating recent folders: %w", err)
		}
		o.info("Updated recent folders with: %s", root)
	}

	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
	}
	tuned := tuner.CalculateWithOverrides(resources, cfg.Workers, cfg.HashWorkers, cfg.CPUUsageLimit)
	printVerbose("System: %d CPUs, %s available; %d walk workers, %d hash workers, %s reads",
		resources.CPUCores, types.FormatSize(resources.AvailableRAM),
		tuned.WalkWorkers, tuned.HashWorkers, types.FormatSize(int64(tuned.ChunkSize)))

	log.Info("scan started", "root", root, "algorithm", cfg.Algorithm(), "cpu_limit", cfg.CPUUsageLimit,
		"policy", cfg.Policy().Describe())

	// One limiter covers the walk and the hashing.
	limiter := throttle.New(cfg.CPUUsageLimit)

	scanOpts := scanner.Options{
		Root:       root,
		Workers:    tuned.WalkWorkers,
		Filter:     cfg.Filter(),
		IgnoreFile: scanner.DefaultIgnoreFile,
		Throttle:   limiter,
	}
	var spinner *walkSpinner
	if o.Progress {
		spinner = newWalkSpinner(o.Err)
		scanOpts.OnProgress = spinner.Update
	}

	scanned, err := scanner.New(scanOpts).Scan(ctx)
	if spinner != nil {
		spinner.Finish()
	}
	if err != nil {
		return nil, cancelled(ctx, err)
	}
	o.info("Total unique file sizes found: %d", scanned.UniqueSizes)

	var digests resolver.DigestCache
	if o.UseCache {
		c, err := cache.Open(cfg.CacheDir)
		if err != nil {
			log.Warn("digest cache unavailable", "dir", cfg.CacheDir, "error", err)
			printVerbose("Digest cache unavailable: %v", err)
		} else {
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("closing digest cache", "error", err)
				}
			}()
			digests = c
		}
	}

	resOpts := resolver.Options{
		Policy:    cfg.Policy(),
		Algorithm: cfg.Algorithm(),
		Throttle:  limiter,
		Workers:   tuned.HashWorkers,
		Cache:     digests,
		Hasher: resolver.ReaderHasher{Reader: digest.NewReader(cfg.Algorithm(),
			digest.WithThrottle(limiter),
			digest.WithChunkSize(tuned.ChunkSize))},
	}
	var bar *hashBar
	if o.Progress {
		bar = newHashBar(o.Err)
		resOpts.OnProgress = bar.Update
	}

	resolved, err := resolver.New(resOpts).Resolve(ctx, scanned.Buckets)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, cancelled(ctx, err)
	}
	if l, ok := limiter.(*throttle.CPULimiter); ok {
		st := l.Stats()
		log.Debug("throttle", "paces", st.Paces, "pauses", st.Pauses, "paused", st.Paused)
	}

	result := &report.Result{
		RunID:        runID,
		Root:         root,
		Generated:    time.Now(),
		Algorithm:    cfg.Algorithm().String(),
		FilesScanned: scanned.FilesScanned,
		UniqueSizes:  scanned.UniqueSizes,
		Groups:       resolved.Groups,
		Folders:      scanned.Folders,
		Warnings:     mergeWarnings(scanned.Warnings, resolved.Warnings),
		Elapsed:      time.Since(start),
	}
	o.info("Total duplicates found: %d", result.DuplicateFiles())

	md, err := report.Get("markdown")
	if err != nil {
		return nil, err
	}
	if err := report.WriteFile(cfg.OutputFile, md, result); err != nil {
		return nil, err
	}

	log.Info("scan finished", "files", result.FilesScanned, "groups", len(result.Groups),
		"duplicates", result.DuplicateFiles(), "reclaimable", result.Reclaimable(),
		"warnings", len(result.Warnings), "elapsed", result.Elapsed)

	if !o.Quiet {
		pretty, err := report.Get("pretty")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := pretty.Format(&buf, result); err != nil {
			return nil, fmt.Errorf("failed to format summary: %w", err)
		}
		fmt.Fprint(o.Out, buf.String())
	}
	o.info("Duplicate files report generated: %s", cfg.OutputFile)

	return result, nil
}

// cancelled maps an error caused by ctx being cancelled to errCancelled.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return errCancelled
	}
	return err
}

// mergeWarnings joins scan and hash warnings, ordered by path.
func mergeWarnings(scan, hash []types.ScanWarning) []types.ScanWarning {
	out := make([]types.ScanWarning, 0, len(scan)+len(hash))
	out = append(out, scan...)
	out = append(out, hash...)
	types.SortWarnings(out)
	return out
}
