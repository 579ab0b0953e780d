package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/config"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/spreadsheet"
	"github.com/nao1215/xlharvest/internal/state"
)

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the collected spreadsheet files",
		Long: `Download fetches every target of a saved crawl, or of an exported
links workbook given with --from.

Files already present in the download directory are skipped, so the
command can be repeated after a failure. A failed download leaves a
<filename>.failed file with the HTTP status instead of a partial file.

Examples:
  # Download the targets of the "indec" crawl into ./indec
  xlharvest download --name indec

  # Download from an edited links workbook with 4 parallel downloads
  xlharvest download --from indec_links.xlsx --download-dir data --concurrency 4`,
		Args: cobra.NoArgs,
		RunE: runDownloadCmd,
	}

	addStateFlags(cmd)
	cmd.Flags().String("from", "",
		"Read links from an xlsx file exported by crawl or export")
	cmd.Flags().String("download-dir", "",
		"Directory for downloaded files (default: the state name)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of concurrent downloads")
	addHTTPFlags(cmd)
	addDBFlags(cmd)

	return cmd
}

// runDownloadCmd executes the download command.
func runDownloadCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	if cfg.DownloadDir, err = cmd.Flags().GetString("download-dir"); err != nil {
		return err
	}
	if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return err
	}
	if err := readHTTPFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readDBFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readStateFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if from != "" && cfg.DownloadDir == "" && cfg.Name == "" {
		return errors.New("configuration error: --download-dir is required when --from is used without --name")
	}
	links, err := loadLinks(cfg, from)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runDownload(ctx, cmd, cfg, links, logger)
}

// loadLinks reads targets from the workbook at from, or from the saved
// crawl state.
func loadLinks(cfg *config.Config, from string) ([]model.LinkRecord, error) {
	if from != "" {
		links, err := spreadsheet.ReadLinks(from)
		if err != nil {
			return nil, fmt.Errorf("failed to read links from %s: %w", from, err)
		}
		return links, nil
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("configuration error: %w", config.ErrNoName)
	}
	if !state.Exists(cfg.StateDir, cfg.Name) {
		return nil, fmt.Errorf("no crawl state named %q in %s", cfg.Name, cfg.StateDir)
	}
	loaded, err := state.Load(cfg.StateDir, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load crawl state %q: %w", cfg.Name, err)
	}
	return loaded.State.Targets(), nil
}

func runDownload(ctx context.Context, cmd *cobra.Command, cfg *config.Config, links []model.LinkRecord, logger *slog.Logger) error {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	f := fetcher.New(client,
		fetcher.WithReporter(newReporter(cmd)),
		fetcher.WithLogger(logger),
		fetcher.WithConcurrency(cfg.Concurrency),
	)

	dir := downloadDir(cfg)
	logger.Info("starting download", "links", len(links), "dir", dir, "concurrency", cfg.Concurrency)

	results, err := f.DownloadAll(ctx, links, dir)
	recordDownloads(context.WithoutCancel(ctx), store, results, logger)
	printDownloadSummary(cmd, results, dir)
	return err
}
