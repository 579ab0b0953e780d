package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and Config.ValidateCrawl()
// so callers can use errors.Is() for programmatic handling.
var (
	// ErrNoSeed is returned when a crawl has neither a seed URL argument
	// nor a configured source with a seed.
	ErrNoSeed = errors.New("no seed URL specified: provide a URL or use --source")

	// ErrNoName is returned when crawl state would be saved without a name.
	ErrNoName = errors.New("no state name specified: use --name or --source")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the download or build
	// concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidStateFormat is returned for state formats other than
	// "snapshot" and "legacy".
	ErrInvalidStateFormat = errors.New("invalid state format: must be snapshot or legacy")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrUnknownSource is returned when --source names a source missing
	// from the configuration file.
	ErrUnknownSource = errors.New("unknown source: not defined in configuration file")
)
