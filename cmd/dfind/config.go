package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/dfind/pkg/dfind/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect dfind configuration.

Settings are read, highest precedence first, from:
  1. command-line flags
  2. environment variables (CPU_USAGE_LIMIT, OUTPUT_FILE, ...)
  3. a .env file in the working directory, or --env-file
  4. built-in defaults

Example .env:
  CPU_USAGE_LIMIT=25
  OUTPUT_FILE=~/reports/dupes.md
  HASH_PARTIAL_SIZES='{"mp4": ["1MB", "1MB"], "txt": "2KB"}'`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the .env file in use",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow prints the validated configuration keyed by environment
// variable name.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.EnvFile == "" {
		wd, _ := os.Getwd()
		fmt.Fprintf(out, "%s (not found, using environment and defaults)\n", filepath.Join(wd, config.DefaultEnvFile))
		return nil
	}
	abs, err := filepath.Abs(cfg.EnvFile)
	if err != nil {
		abs = cfg.EnvFile
	}
	fmt.Fprintln(out, abs)
	return nil
}
