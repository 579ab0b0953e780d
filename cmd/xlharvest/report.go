package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/config"
	"github.com/nao1215/xlharvest/internal/report"
	"github.com/nao1215/xlharvest/internal/state"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a saved crawl",
		Long: `Report loads a saved crawl state and prints its counts and the collected
download links, marking the ones already present in the download
directory.

Examples:
  xlharvest report --name indec
  xlharvest report --source indec --markdown -o reports/indec.md
  xlharvest report --name indec --json`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	addStateFlags(cmd)
	cmd.Flags().String("download-dir", "",
		"Directory checked for downloaded files (default: the state name)")
	addFormatFlags(cmd)

	return cmd
}

func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

func readFormatFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	return nil
}

// reportWriter returns the Writer for the requested format.
func reportWriter(cmd *cobra.Command, cfg *config.Config) (report.Writer, func() error, error) {
	output, closeFn, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion())), closeFn, nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeFn, nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose)), closeFn, nil
	}
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := readStateFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readFormatFlags(cmd, cfg); err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("download-dir")
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.DownloadDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Name == "" {
		return fmt.Errorf("configuration error: %w", config.ErrNoName)
	}
	if !state.Exists(cfg.StateDir, cfg.Name) {
		return fmt.Errorf("no crawl state named %q in %s", cfg.Name, cfg.StateDir)
	}

	loaded, err := state.Load(cfg.StateDir, cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to load crawl state %q: %w", cfg.Name, err)
	}

	w, closeFn, err := reportWriter(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // Close error after a successful write is not actionable

	if _, err := w.Write(report.NewCrawlSummary(cfg.Name, loaded, downloadDir(cfg))); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
