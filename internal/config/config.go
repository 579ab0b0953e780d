package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request. Statistics sites often serve
	// large spreadsheets slowly, so this is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultCrawlDelay is the delay between page fetches. Zero means the
	// crawler fetches pages back to back.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultConcurrency is the number of simultaneous downloads and
	// ETL rows. One keeps every operation sequential.
	DefaultConcurrency = 1

	// DefaultStateDir is where crawl state files are written.
	DefaultStateDir = "."

	// DefaultStateFormat is the on-disk layout for crawl state.
	DefaultStateFormat = StateFormatSnapshot

	// DefaultMaxBodySize limits the HTML read from a single page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies xlharvest in HTTP requests.
	DefaultUserAgent = "xlharvest/1.0 (+https://github.com/nao1215/xlharvest)"

	// AppName is the application name used for XDG directory paths.
	AppName = "xlharvest"
)

// Crawl state formats.
const (
	// StateFormatSnapshot writes one versioned document per source.
	StateFormatSnapshot = "snapshot"

	// StateFormatLegacy writes target, visited and to-visit documents.
	StateFormatLegacy = "legacy"
)

// Config holds all configuration options for xlharvest.
// It is populated from CLI flags and the optional configuration file.
type Config struct {
	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// CrawlDelay is the minimum delay between page fetches during a crawl.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// MaxBodySize is the maximum HTML body size read per page.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// Sources holds the source definitions loaded from the config file.
	Sources *File

	// Source is the name of the selected source from the config file.
	Source string

	// Name identifies the crawl state on disk. Defaults to Source.
	Name string

	// Seed is the URL a crawl starts from.
	Seed string

	// TargetSubstrings mark a link as a target to keep.
	TargetSubstrings []string

	// FollowSubstrings mark a link as a page to recurse into.
	FollowSubstrings []string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// RespectRobots makes the crawler skip pages disallowed by robots.txt.
	RespectRobots bool

	// StateDir is the directory holding crawl state files.
	StateDir string

	// StateFormat is StateFormatSnapshot or StateFormatLegacy.
	StateFormat string

	// Resume loads existing state before crawling.
	Resume bool

	// DownloadDir is where target files are downloaded.
	DownloadDir string

	// Concurrency is the number of simultaneous downloads or ETL rows.
	Concurrency int

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records crawl runs and downloads in the database.
	SaveToDB bool

	// JSONReport selects JSON output for reports.
	JSONReport bool

	// MarkdownReport selects Markdown output for reports.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		CrawlDelay:  DefaultCrawlDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		StateDir:    DefaultStateDir,
		StateFormat: DefaultStateFormat,
		Concurrency: DefaultConcurrency,
		DBDir:       XDGDataDir(),
		Headers:     make(map[string]string),
	}
}

// XDGDataDir returns the XDG data directory for xlharvest.
// On Linux: ~/.local/share/xlharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for xlharvest.
// On Linux: ~/.config/xlharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the options shared by every command.
// It returns the first error found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.StateFormat != StateFormatSnapshot && c.StateFormat != StateFormatLegacy {
		return ErrInvalidStateFormat
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateCrawl checks the options required to start a crawl.
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Seed == "" {
		return ErrNoSeed
	}
	if c.Name == "" {
		return ErrNoName
	}
	return nil
}

// ApplySource copies the settings of the named source onto c.
// Values already set on c (from flags) take precedence.
func (c *Config) ApplySource(name string) error {
	if c.Sources == nil {
		return ErrUnknownSource
	}
	if _, ok := c.Sources.Sources[name]; !ok {
		return ErrUnknownSource
	}

	src := c.Sources.GetSourceConfig(name)
	c.Source = name
	if c.Name == "" {
		c.Name = name
	}
	if c.Seed == "" {
		c.Seed = src.Seed
	}
	if len(c.TargetSubstrings) == 0 {
		c.TargetSubstrings = src.Targets
	}
	if len(c.FollowSubstrings) == 0 {
		c.FollowSubstrings = src.Follow
	}
	if c.DownloadDir == "" {
		c.DownloadDir = src.DownloadDir
	}
	if src.RespectRobots {
		c.RespectRobots = true
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	for k, v := range src.Headers {
		if _, ok := c.Headers[k]; !ok {
			c.Headers[k] = v
		}
	}
	return nil
}
