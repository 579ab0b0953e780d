package report

import (
	"cmp"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/state"
)

// Target is one collected download link.
type Target struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`

	// Downloaded is true when the file exists in the download directory.
	Downloaded bool `json:"downloaded"`
}

// ExtensionCount is the number of targets sharing a file extension.
type ExtensionCount struct {
	Extension string `json:"extension"`
	Count     int    `json:"count"`
}

// CrawlSummary is the content of a crawl report.
type CrawlSummary struct {
	Name        string    `json:"name"`
	Seed        string    `json:"seed,omitempty"`
	Format      string    `json:"format,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	Targets int `json:"targets"`
	ToVisit int `json:"to_visit"`
	Visited int `json:"visited"`

	// DownloadDir is the directory checked for downloaded files. When it
	// is empty no check is made.
	DownloadDir string `json:"download_dir,omitempty"`
	Downloaded  int    `json:"downloaded"`

	Extensions []ExtensionCount `json:"extensions"`
	Links      []Target         `json:"links"`
}

// NewCrawlSummary builds the summary of state loaded under name.
func NewCrawlSummary(name string, loaded *state.Loaded, downloadDir string) *CrawlSummary {
	stats := loaded.State.Stats()
	s := &CrawlSummary{
		Name:        name,
		Seed:        loaded.Seed,
		Format:      string(loaded.Format),
		GeneratedAt: time.Now().UTC(),
		Targets:     stats.Targets,
		ToVisit:     stats.ToVisit,
		Visited:     stats.Visited,
		DownloadDir: downloadDir,
		Extensions:  make([]ExtensionCount, 0),
		Links:       make([]Target, 0, stats.Targets),
	}

	counts := make(map[string]int)
	for _, link := range loaded.State.Targets() {
		t := Target{
			Description: strings.TrimSpace(link.Description),
			URL:         link.URL,
			Filename:    link.Filename(),
		}
		if downloadDir != "" && fetcher.Exists(link, downloadDir) {
			t.Downloaded = true
			s.Downloaded++
		}
		s.Links = append(s.Links, t)
		counts[extension(link.URL)]++
	}

	for ext, n := range counts {
		s.Extensions = append(s.Extensions, ExtensionCount{Extension: ext, Count: n})
	}
	slices.SortFunc(s.Extensions, func(a, b ExtensionCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Extension, b.Extension)
	})
	return s
}

// Complete reports whether nothing is left to visit.
func (s *CrawlSummary) Complete() bool {
	return s.ToVisit == 0
}

// extension returns the lower-case extension of the URL path without the
// dot, or "other".
func extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return "other"
	}
	return ext
}
