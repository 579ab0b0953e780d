package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for xlharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xlharvest",
		Short: "Harvest spreadsheet time series from statistics websites",
		Long: `xlharvest collects download links of spreadsheet files from a website,
downloads the files and extracts their time series into a SQLite database.

A crawl keeps its progress in state files under --state-dir, so an
interrupted crawl can be resumed with --resume. Per-source settings
(seed, link filters, metadata sheet) can be kept in a .xlharvest file;
see "xlharvest init".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .xlharvest in current or home directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewDownloadCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewBuildCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
