package config

import "sort"

// SourceConfig describes one data source: where its crawl starts, how
// links are classified and where its files and metadata live.
type SourceConfig struct {
	// Seed is the URL the crawl starts from.
	Seed string `yaml:"seed,omitempty"`

	// Targets are substrings that mark a link as a file to keep.
	Targets []string `yaml:"targets,omitempty"`

	// Follow are substrings that mark a link as a page to recurse into.
	Follow []string `yaml:"follow,omitempty"`

	// DownloadDir is where target files are downloaded.
	// Defaults to the source name.
	DownloadDir string `yaml:"download_dir,omitempty"`

	// Metadata is the spreadsheet listing files and extraction parameters
	// for the build command. Defaults to "<source>.xlsx".
	Metadata string `yaml:"metadata,omitempty"`

	// Headers are custom HTTP headers to send to this source.
	Headers map[string]string `yaml:"headers,omitempty"`

	// RespectRobots skips pages disallowed by the site's robots.txt.
	RespectRobots bool `yaml:"respect_robots,omitempty"`
}

// File represents the structure of the .xlharvest configuration file.
type File struct {
	// Sources maps source names (e.g. "indec") to their configuration.
	Sources map[string]SourceConfig `yaml:"sources,omitempty"`

	// Defaults is applied to every source unless overridden.
	Defaults SourceConfig `yaml:"defaults,omitempty"`
}

// GetSourceConfig returns the configuration of a source merged with the
// defaults. Unknown sources get the defaults plus name-derived paths.
func (cf *File) GetSourceConfig(name string) SourceConfig {
	result := cf.Defaults

	if src, ok := cf.Sources[name]; ok {
		if src.Seed != "" {
			result.Seed = src.Seed
		}
		if len(src.Targets) > 0 {
			result.Targets = src.Targets
		}
		if len(src.Follow) > 0 {
			result.Follow = src.Follow
		}
		if src.DownloadDir != "" {
			result.DownloadDir = src.DownloadDir
		}
		if src.Metadata != "" {
			result.Metadata = src.Metadata
		}
		if src.RespectRobots {
			result.RespectRobots = true
		}
		if len(src.Headers) > 0 {
			merged := make(map[string]string, len(result.Headers)+len(src.Headers))
			for k, v := range result.Headers {
				merged[k] = v
			}
			for k, v := range src.Headers {
				merged[k] = v
			}
			result.Headers = merged
		}
	}

	if result.DownloadDir == "" {
		result.DownloadDir = name
	}
	if result.Metadata == "" {
		result.Metadata = name + ".xlsx"
	}

	return result
}

// Names returns the configured source names in sorted order.
func (cf *File) Names() []string {
	names := make([]string, 0, len(cf.Sources))
	for name := range cf.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
