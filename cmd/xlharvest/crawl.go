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
	"github.com/nao1215/xlharvest/internal/crawler"
	"github.com/nao1215/xlharvest/internal/database"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/spreadsheet"
	"github.com/nao1215/xlharvest/internal/state"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Collect spreadsheet download links from a website",
		Long: `Crawl starts from a seed page and follows links depth-first.

Each link found on a page is one of:
- a target, when its URL contains one of the --target substrings;
  targets are collected with their anchor text as description
- a page to visit, when its URL contains one of the --follow substrings,
  does not end in a file extension and has not been seen before
- ignored, otherwise

Progress is saved to the state directory when the crawl ends, fails or
is interrupted. Use --resume to continue from the saved state; the seed
argument may be omitted when resuming.

Examples:
  # Collect every .xls link under a site
  xlharvest crawl --name indec -t .xls -f indec.gob.ar https://www.indec.gob.ar/

  # Use the settings of a configured source and download the files
  xlharvest crawl --source indec --download

  # Continue an interrupted crawl and export the links
  xlharvest crawl --name indec --resume --export indec_links.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	addStateFlags(cmd)
	cmd.Flags().StringSliceP("target", "t", nil,
		"Substring marking a link as a download target (repeatable)")
	cmd.Flags().StringSliceP("follow", "f", nil,
		"Substring a link must contain to be visited (repeatable)")
	cmd.Flags().String("state-format", config.DefaultStateFormat,
		"State file layout: snapshot or legacy")
	cmd.Flags().BoolP("resume", "r", false,
		"Continue from previously saved state")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between page requests")
	cmd.Flags().Bool("respect-robots", false,
		"Skip pages disallowed by robots.txt")
	cmd.Flags().StringToString("header", nil,
		"Extra request header as key=value (repeatable)")
	addHTTPFlags(cmd)

	cmd.Flags().BoolP("download", "d", false,
		"Download every target after crawling")
	cmd.Flags().String("download-dir", "",
		"Directory for downloaded files (default: the state name)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of concurrent downloads")
	cmd.Flags().StringP("export", "e", "",
		"Export the targets to this xlsx file after crawling")
	addDBFlags(cmd)

	return cmd
}

// crawlOptions are the crawl flags config.Config does not carry.
type crawlOptions struct {
	download bool
	export   string
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cmd, cfg, opts, logger)
}

// buildCrawlConfig creates a Config from the crawl flags. Flags win over
// the configured source.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, crawlOptions, error) {
	var opts crawlOptions

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, opts, err
	}

	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	if cfg.TargetSubstrings, err = cmd.Flags().GetStringSlice("target"); err != nil {
		return nil, opts, err
	}
	if cfg.FollowSubstrings, err = cmd.Flags().GetStringSlice("follow"); err != nil {
		return nil, opts, err
	}
	headers, err := cmd.Flags().GetStringToString("header")
	if err != nil {
		return nil, opts, err
	}
	for k, v := range headers {
		cfg.Headers[k] = v
	}
	if cfg.StateFormat, err = cmd.Flags().GetString("state-format"); err != nil {
		return nil, opts, err
	}
	if cfg.Resume, err = cmd.Flags().GetBool("resume"); err != nil {
		return nil, opts, err
	}
	if cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay"); err != nil {
		return nil, opts, err
	}
	if cfg.RespectRobots, err = cmd.Flags().GetBool("respect-robots"); err != nil {
		return nil, opts, err
	}
	if cfg.DownloadDir, err = cmd.Flags().GetString("download-dir"); err != nil {
		return nil, opts, err
	}
	if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return nil, opts, err
	}
	if opts.download, err = cmd.Flags().GetBool("download"); err != nil {
		return nil, opts, err
	}
	if opts.export, err = cmd.Flags().GetString("export"); err != nil {
		return nil, opts, err
	}
	if err := readHTTPFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}
	if err := readDBFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}
	if err := readStateFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, opts, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, opts, nil
}

// resumeSeed returns the seed to resume a loaded state from. Legacy files
// record no seed, so the first visited URL stands in for it: it is already
// visited, and the crawl continues from the to-visit stack.
func resumeSeed(loaded *state.Loaded) string {
	if loaded.Seed != "" {
		return loaded.Seed
	}
	if visited := loaded.State.Visited(); len(visited) > 0 {
		return visited[0]
	}
	return ""
}

// runCrawl loads or creates the crawl state, crawls, saves the state and
// runs the optional export and download.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts crawlOptions, logger *slog.Logger) error {
	st := model.NewCrawlState()
	if cfg.Resume {
		if cfg.Name == "" {
			return fmt.Errorf("configuration error: %w", config.ErrNoName)
		}
		loaded, err := state.Load(cfg.StateDir, cfg.Name)
		if err != nil {
			return fmt.Errorf("failed to load crawl state %q: %w", cfg.Name, err)
		}
		st = loaded.State
		if cfg.Seed == "" {
			cfg.Seed = resumeSeed(loaded)
		}
		logger.Info("resuming crawl", "name", cfg.Name, "format", loaded.Format, "stats", st.Stats().String())
	} else if cfg.Name != "" && state.Exists(cfg.StateDir, cfg.Name) {
		logger.Warn("existing crawl state will be overwritten", "name", cfg.Name, "dir", cfg.StateDir)
	}

	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

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

	reporter := newReporter(cmd)
	spiderOpts := []crawler.SpiderOption{
		crawler.WithState(st),
		crawler.WithReporter(reporter),
		crawler.WithLogger(logger),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.RespectRobots {
		spiderOpts = append(spiderOpts, crawler.WithRobots(crawler.NewRobotsPolicy(client, cfg.UserAgent, logger)))
	}
	spider := crawler.NewSpider(client, spiderOpts...)

	logger.Info("starting crawl",
		"name", cfg.Name,
		"seed", cfg.Seed,
		"targets", cfg.TargetSubstrings,
		"follow", cfg.FollowSubstrings,
	)

	started := time.Now()
	crawlErr := spider.Crawl(ctx, cfg.Seed, cfg.TargetSubstrings, cfg.FollowSubstrings)
	finished := time.Now()

	// State is saved whatever the outcome so the crawl can be resumed.
	if err := state.Save(cfg.StateDir, cfg.Name, cfg.Seed, spider.State(), state.Format(cfg.StateFormat)); err != nil {
		return errors.Join(crawlErr, fmt.Errorf("failed to save crawl state: %w", err))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Crawl state %q saved in %s\n", cfg.Name, cfg.StateDir)

	recordCrawlRun(context.WithoutCancel(ctx), store, cfg, spider.State().Stats(), started, finished, crawlErr, logger)

	if crawlErr != nil {
		if errors.Is(crawlErr, context.Canceled) {
			return fmt.Errorf("crawl interrupted, resume with --resume: %w", crawlErr)
		}
		return crawlErr
	}

	targets := spider.State().Targets()
	fmt.Fprintf(cmd.OutOrStdout(), "Collected %d download links.\n", len(targets))

	if opts.export != "" {
		if err := spreadsheet.ExportLinks(opts.export, targets); err != nil {
			return fmt.Errorf("failed to export links: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Links exported to %s\n", opts.export)
	}

	if opts.download {
		return downloadTargets(ctx, cmd, client, spider, cfg, store, logger)
	}
	return nil
}

func downloadTargets(ctx context.Context, cmd *cobra.Command, client *http.Client, spider *crawler.Spider, cfg *config.Config, store *database.Store, logger *slog.Logger) error {
	f := fetcher.New(client,
		fetcher.WithReporter(newReporter(cmd)),
		fetcher.WithLogger(logger),
		fetcher.WithConcurrency(cfg.Concurrency),
	)
	dir := downloadDir(cfg)
	results, err := spider.DownloadAll(ctx, f, dir)
	recordDownloads(context.WithoutCancel(ctx), store, results, logger)
	printDownloadSummary(cmd, results, dir)
	return err
}

func printDownloadSummary(cmd *cobra.Command, results []*fetcher.Result, dir string) {
	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d, skipped %d, failed %d files in %s\n",
		countStatus(results, fetcher.StatusDownloaded),
		countStatus(results, fetcher.StatusSkipped),
		countStatus(results, fetcher.StatusFailed),
		dir,
	)
}

// recordCrawlRun stores the run in the history. Failures are logged only.
func recordCrawlRun(ctx context.Context, store *database.Store, cfg *config.Config, stats model.CrawlStats, started, finished time.Time, crawlErr error, logger *slog.Logger) {
	if store == nil {
		return
	}
	run := &database.CrawlRun{
		Name:       cfg.Name,
		Seed:       cfg.Seed,
		StartedAt:  started,
		FinishedAt: finished,
		Stats:      stats,
	}
	if crawlErr != nil {
		run.Error = crawlErr.Error()
	}
	if _, err := store.RecordCrawlRun(ctx, run); err != nil {
		logger.Warn("failed to record crawl run", "name", cfg.Name, "error", err)
	}
}
