package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/config"
	"github.com/nao1215/xlharvest/internal/database"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/httpclient"
	xlog "github.com/nao1215/xlharvest/internal/log"
	"github.com/nao1215/xlharvest/internal/progress"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// setupLogger creates the redacting logger and installs it as default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := xlog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	slog.SetDefault(logger)
	return logger
}

// loadConfig creates a Config with the configuration file loaded.
// An explicitly given file must exist; otherwise a missing file means
// no per-source settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getConfigFlag(cmd)

	sources, path, err := config.ResolveConfigFile(cfg.ConfigFilePath)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return nil, err
	}
	cfg.Sources = sources
	if path != "" {
		cfg.ConfigFilePath = path
	}
	return cfg, nil
}

// applySourceFlag applies per-source settings when --source is set.
func applySourceFlag(cmd *cobra.Command, cfg *config.Config) error {
	source, err := cmd.Flags().GetString("source")
	if err != nil || source == "" {
		return err
	}
	if err := cfg.ApplySource(source); err != nil {
		return fmt.Errorf("%w: %s", err, source)
	}
	return nil
}

// readStateFlags reads the flags locating saved crawl state.
func readStateFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Name, err = cmd.Flags().GetString("name"); err != nil {
		return err
	}
	if cfg.StateDir, err = cmd.Flags().GetString("state-dir"); err != nil {
		return err
	}
	return applySourceFlag(cmd, cfg)
}

func addStateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("name", "n", "",
		"Name of the crawl state (default: the source name)")
	cmd.Flags().String("state-dir", config.DefaultStateDir,
		"Directory holding crawl state files")
	cmd.Flags().StringP("source", "s", "",
		"Source defined in the configuration file")
}

func addHTTPFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
}

func readHTTPFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
		return err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return err
	}
	return nil
}

func addDBFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not record results in the database")
}

func readDBFlags(cmd *cobra.Command, cfg *config.Config) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	return nil
}

// newHTTPClient builds the client shared by crawler and fetcher.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	client, err := httpclient.New(httpclient.Options{
		Timeout:      cfg.Timeout,
		UserAgent:    cfg.UserAgent,
		Headers:      cfg.Headers,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// newReporter writes progress lines to stderr, rewriting in-progress
// lines in place.
func newReporter(cmd *cobra.Command) *progress.WriterReporter {
	return progress.NewWriterReporter(cmd.ErrOrStderr(), true)
}

// openStore opens the database when enabled. A nil store means results
// are not recorded.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.Store, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", store.Path())
	return store, nil
}

// recordDownloads stores fetcher results in the download manifest.
func recordDownloads(ctx context.Context, store *database.Store, results []*fetcher.Result, logger *slog.Logger) {
	if store == nil {
		return
	}
	for _, r := range results {
		if r == nil || r.Status == fetcher.StatusSkipped {
			continue
		}
		rec := &database.DownloadRecord{
			Path:        r.Path,
			URL:         r.URL,
			Status:      r.Status.String(),
			StatusCode:  r.StatusCode,
			Bytes:       r.Bytes,
			Digest:      r.Digest,
			AttemptedAt: r.CompletedAt,
		}
		if err := store.RecordDownload(ctx, rec); err != nil {
			logger.Warn("failed to record download", "path", r.Path, "error", err)
		}
	}
}

// countStatus returns how many results have status s.
func countStatus(results []*fetcher.Result, s fetcher.Status) int {
	n := 0
	for _, r := range results {
		if r != nil && r.Status == s {
			n++
		}
	}
	return n
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// openOutput returns the report destination: the file at path, created
// with its parent directories, or stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// downloadDir returns the configured download directory, defaulting to
// the state name.
func downloadDir(cfg *config.Config) string {
	if cfg.DownloadDir != "" {
		return cfg.DownloadDir
	}
	return cfg.Name
}
