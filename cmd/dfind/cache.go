package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dfind/pkg/dfind/cache"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache remembers partial and full digests keyed by path, so repeat scans
only read files whose size or modification time changed. It lives in
CACHE_DIR (typically ~/.cache/dfind/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [folder]",
	Short: "Clear cached digests",
	Long:  `Removes cached digests for files under folder, or all of them when no folder is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CacheDir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func runCacheClear(cmd *cobra.Command, args []string) (err error) {
	var root string
	if len(args) > 0 {
		if root, err = filepath.Abs(args[0]); err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
	}

	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing cache: %w", cerr)
		}
	}()

	n, err := c.Clear(root)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if root == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries).\n", n)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries under %s.\n", n, root)
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) (err error) {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing cache: %w", cerr)
		}
	}()

	st, err := c.Stats()
	if err != nil {
		return fmt.Errorf("reading cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache location: %s\n", st.Dir)
	fmt.Fprintf(out, "Entries:        %s\n", types.FormatCount(int64(st.Entries)))
	fmt.Fprintf(out, "Index size:     %s\n", types.FormatSize(st.LSMBytes))
	fmt.Fprintf(out, "Log size:       %s\n", types.FormatSize(st.LogBytes))
	return nil
}
