package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dfind/pkg/dfind/config"
)

var (
	envFile    string
	quiet      bool
	verbose    bool
	noProgress bool
	noCache    bool

	rootCmd = &cobra.Command{
		Use:   "dfind [folder-path]",
		Short: "Find duplicate files and write a markdown report",
		Long: `dfind scans a folder tree for files with identical content.

Files are grouped by size, then by a digest of a few bytes, and only the
files that still match are read in full. Confirmed duplicates are written
to a markdown report, largest first.

Without a folder argument dfind offers the recently scanned folders.

Settings come from flags, the environment, and a .env file in the working
directory (see "dfind config show").

Examples:
  dfind ~/Pictures                 # Scan a folder
  dfind                            # Pick from recent folders
  dfind -o dupes.md --cpu-limit 50 # Custom report path, higher CPU ceiling
  dfind --ext video --min-size 10M # Only videos of 10 MiB or more`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runScan,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", "", "dotenv file to read (default: ./.env if present)")
	flags.StringP("output", "o", "", "report path (default "+config.DefaultOutputFile+")")
	flags.Int("cpu-limit", 0, "CPU ceiling in percent of one core (0 or 100 disables)")
	flags.IntP("workers", "w", 0, "directory walk workers (0=auto)")
	flags.Int("hash-workers", 0, "concurrent hashing workers (0=auto)")
	flags.StringP("min-size", "s", "", "ignore files smaller than this (e.g. 10K, 5M)")
	flags.StringSlice("ext", nil, "only these extensions or groups: video, audio, image, archive, document (repeatable)")
	flags.StringSliceP("exclude", "e", nil, "glob patterns to skip (repeatable)")
	flags.String("algorithm", "", "content digest: blake3, sha256, md5")
	flags.String("log-level", "", "log file level: debug, info, warn, error")
	flags.BoolVar(&noCache, "no-cache", false, "do not read or write the digest cache")
	flags.BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug output on stderr")
	flags.BoolVar(&noProgress, "no-progress", false, "hide progress bars")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
