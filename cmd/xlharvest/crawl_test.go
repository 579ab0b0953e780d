package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/config"
)

// parseCommand finds the subcommand named by args[0] in a fresh root
// command and parses the remaining flags, as Execute would.
func parseCommand(t *testing.T, args ...string) (*cobra.Command, []string) {
	t.Helper()

	cmd, rest, err := NewRootCmd().Find(args)
	if err != nil {
		t.Fatalf("failed to find command: %v", err)
	}
	if err := cmd.ParseFlags(rest); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd, cmd.Flags().Args()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".xlharvest")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const testConfig = `
defaults:
  targets: [".xls"]
sources:
  indec:
    seed: "http://config.example/"
    follow: ["config.example"]
    download_dir: "cfgdir"
    headers:
      Accept-Language: "es"
`

// TestBuildCrawlConfig tests flag and configuration file precedence.
func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, testConfig)

	t.Run("source settings fill unset flags", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCommand(t, "crawl", "--config", cfgPath, "--source", "indec")
		cfg, opts, err := buildCrawlConfig(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Name != "indec" || cfg.Seed != "http://config.example/" {
			t.Errorf("unexpected name/seed %q/%q", cfg.Name, cfg.Seed)
		}
		if !slices.Equal(cfg.TargetSubstrings, []string{".xls"}) || !slices.Equal(cfg.FollowSubstrings, []string{"config.example"}) {
			t.Errorf("unexpected substrings %v/%v", cfg.TargetSubstrings, cfg.FollowSubstrings)
		}
		if cfg.DownloadDir != "cfgdir" || cfg.Headers["Accept-Language"] != "es" {
			t.Errorf("unexpected download dir or headers: %q %v", cfg.DownloadDir, cfg.Headers)
		}
		if opts.download || opts.export != "" {
			t.Error("download and export should default to off")
		}
		if !cfg.SaveToDB {
			t.Error("expected results to be recorded by default")
		}
	})

	t.Run("flags win over the source", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCommand(t, "crawl", "--config", cfgPath, "--source", "indec",
			"--name", "custom", "-t", ".csv", "-t", ".ods", "--header", "Accept-Language=en",
			"--no-db", "-d", "--export", "out.xlsx", "http://flag.example/")
		cfg, opts, err := buildCrawlConfig(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Name != "custom" || cfg.Seed != "http://flag.example/" {
			t.Errorf("unexpected name/seed %q/%q", cfg.Name, cfg.Seed)
		}
		if !slices.Equal(cfg.TargetSubstrings, []string{".csv", ".ods"}) {
			t.Errorf("unexpected targets %v", cfg.TargetSubstrings)
		}
		if cfg.Headers["Accept-Language"] != "en" {
			t.Errorf("expected header flag to win, got %q", cfg.Headers["Accept-Language"])
		}
		if cfg.SaveToDB || !opts.download || opts.export != "out.xlsx" {
			t.Errorf("unexpected options %+v, saveToDB=%v", opts, cfg.SaveToDB)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCommand(t, "crawl", "--config", cfgPath, "--source", "missing")
		if _, _, err := buildCrawlConfig(cmd, args); !errors.Is(err, config.ErrUnknownSource) {
			t.Errorf("expected ErrUnknownSource, got %v", err)
		}
	})

	t.Run("invalid state format", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCommand(t, "crawl", "--config", cfgPath, "--state-format", "xml", "http://x/")
		if _, _, err := buildCrawlConfig(cmd, args); !errors.Is(err, config.ErrInvalidStateFormat) {
			t.Errorf("expected ErrInvalidStateFormat, got %v", err)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "nope.yaml")
		cmd, args := parseCommand(t, "crawl", "--config", missing, "http://x/")
		if _, _, err := buildCrawlConfig(cmd, args); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}
