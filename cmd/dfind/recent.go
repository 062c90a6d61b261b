package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dfind/pkg/dfind/recent"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Manage the recent-folder list",
	Long: `Manage the list of recently scanned folders.

The list is stored as JSON in CONFIG_FILE (default config.json) and holds at
most MAX_RECENT_FOLDERS entries, most recent first.`,
}

var recentListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent folders",
	RunE:  runRecentList,
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent folders",
	RunE:  runRecentClear,
}

func init() {
	recentCmd.AddCommand(recentListCmd)
	recentCmd.AddCommand(recentClearCmd)
	rootCmd.AddCommand(recentCmd)
}

func openRecent(cmd *cobra.Command) (*recent.List, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return recent.Open(recent.NewFileStore(cfg.ConfigFile), cfg.MaxRecentFolders)
}

func runRecentList(cmd *cobra.Command, _ []string) error {
	list, err := openRecent(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if list.Len() == 0 {
		fmt.Fprintln(out, "No recent folders found.")
		return nil
	}
	for i, folder := range list.Folders() {
		fmt.Fprintf(out, "%d. %s\n", i+1, folder)
	}
	return nil
}

func runRecentClear(cmd *cobra.Command, _ []string) error {
	list, err := openRecent(cmd)
	if err != nil {
		return err
	}
	n := list.Len()
	if err := list.Clear(); err != nil {
		return fmt.Errorf("clearing recent folders: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d recent folders.\n", n)
	return nil
}
