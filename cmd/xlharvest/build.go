package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/config"
	"github.com/nao1215/xlharvest/internal/database"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/pipeline"
	"github.com/nao1215/xlharvest/internal/spreadsheet"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <source>...",
		Short: "Build the series database from a source's metadata sheet",
		Long: `Build reads the metadata sheet of each source, downloads every listed
spreadsheet, extracts its time series and stores the observations in
the database.

The metadata sheet is <source>.xlsx unless the configuration file sets
"metadata" for the source. Its columns are download_link, filename,
headers_coord, data_starts, frequency, time_header_coord, context,
ws_name, categories and description. Files are cached in the source's
download directory (default: <source>/).

A row that fails to download or extract is reported and skipped; the
other rows are still built. Observations are upserted, so a source can
be rebuilt to refresh its values.

Examples:
  # Download and build two sources
  xlharvest build indec ine

  # Rebuild from already downloaded files
  xlharvest build --use-cache indec`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBuildCmd,
	}

	cmd.Flags().BoolP("use-cache", "u", false,
		"Use previously downloaded files instead of downloading")
	cmd.Flags().String("metadata", "",
		"Metadata sheet path (only with a single source)")
	cmd.Flags().String("download-dir", "",
		"Directory for cached files (only with a single source)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of rows processed concurrently")
	addHTTPFlags(cmd)
	addDBFlags(cmd)

	return cmd
}

// buildOptions are the build flags config.Config does not carry.
type buildOptions struct {
	useCache bool
	metadata string
}

// runBuildCmd executes the build command.
func runBuildCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var opts buildOptions
	if opts.useCache, err = cmd.Flags().GetBool("use-cache"); err != nil {
		return err
	}
	if opts.metadata, err = cmd.Flags().GetString("metadata"); err != nil {
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
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if len(args) > 1 && (opts.metadata != "" || cfg.DownloadDir != "") {
		return errors.New("configuration error: --metadata and --download-dir need a single source")
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

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

	for _, source := range args {
		if err := buildSource(ctx, cmd, cfg, opts, source, client, store, logger); err != nil {
			return err
		}
	}
	return nil
}

// buildSource runs the build pipeline over every row of source's
// metadata sheet.
func buildSource(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts buildOptions, source string, client *http.Client, store *database.Store, logger *slog.Logger) error {
	sc := cfg.Sources.GetSourceConfig(source)
	metadata := sc.Metadata
	if opts.metadata != "" {
		metadata = opts.metadata
	}
	dir := sc.DownloadDir
	if cfg.DownloadDir != "" {
		dir = cfg.DownloadDir
	}

	rows, err := spreadsheet.ReadSources(metadata)
	if err != nil {
		return fmt.Errorf("failed to read metadata of %s: %w", source, err)
	}

	jobs := make([]*model.SourceJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, model.NewSourceJob(source, row))
	}

	reporter := newReporter(cmd)
	downloader := fetcher.New(client, fetcher.WithReporter(reporter), fetcher.WithLogger(logger))

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewBuildPipeline(pipeline.BuildOptions{
				Downloader: downloader,
				Directory:  dir,
				UseCache:   opts.useCache,
				Store:      store,
				Reporter:   reporter,
				Logger:     logger,
			})
		},
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Building %s from %s (%d files)...\n", source, metadata, len(jobs))
	summary, err := bp.ProcessBatch(ctx, jobs)

	out := cmd.OutOrStdout()
	for _, job := range jobs {
		if job.Err != nil && !errors.Is(job.Err, context.Canceled) {
			fmt.Fprintf(out, "  failed: %s: %v\n", job.Row.Filename, job.Err)
		}
	}
	fmt.Fprintf(out, "Built %s: %d files, %d failed, %d series, %d observations stored in %s\n",
		source, summary.Jobs, summary.Failed, summary.Series, summary.Stored, summary.Duration.Round(time.Millisecond))

	return err
}
