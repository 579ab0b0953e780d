package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/database"
)

// defaultHistoryLimit is the number of runs shown by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded crawl runs",
		Long: `History lists the crawls recorded in the database, newest first, with
their counts, duration and the error that stopped them, if any.

Examples:
  xlharvest history
  xlharvest history --name indec --limit 5
  xlharvest history --markdown -o history.md`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("name", "n", "",
		"Only show runs of this crawl state")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to show (0 for all)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	addFormatFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Name, err = cmd.Flags().GetString("name"); err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if err := readFormatFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	setupLogger(cmd)

	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	runs, err := store.ListCrawlRuns(cmd.Context(), cfg.Name, limit)
	if err != nil {
		return err
	}

	w, closeFn, err := reportWriter(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // Close error after a successful write is not actionable

	if _, err := w.WriteHistory(runs); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
