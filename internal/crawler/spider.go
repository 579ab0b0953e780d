package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/progress"
)

// DefaultMaxBodySize limits how much of a page is read.
const DefaultMaxBodySize = 10 * 1024 * 1024

// Downloader downloads a batch of links into a directory.
// *fetcher.Fetcher implements it.
type Downloader interface {
	DownloadAll(ctx context.Context, links []model.LinkRecord, directory string) ([]*fetcher.Result, error)
}

// Spider crawls a website and classifies the links it finds.
// It is not safe for concurrent use.
type Spider struct {
	client      *http.Client
	state       *model.CrawlState
	reporter    progress.Reporter
	logger      *slog.Logger
	limiter     *rate.Limiter
	robots      *RobotsPolicy
	maxBodySize int64
	now         func() time.Time

	// current is the URL being scraped. It counts as queued while its own
	// links are classified.
	current string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithState resumes from a previously saved crawl state.
func WithState(state *model.CrawlState) SpiderOption {
	return func(s *Spider) {
		if state != nil {
			s.state = state
		}
	}
}

// WithReporter sets the progress observer.
func WithReporter(r progress.Reporter) SpiderOption {
	return func(s *Spider) {
		s.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithDelay sets the minimum interval between page requests.
// Zero disables the delay.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithRobots keeps URLs disallowed by robots.txt off the to-visit stack.
func WithRobots(policy *RobotsPolicy) SpiderOption {
	return func(s *Spider) {
		s.robots = policy
	}
}

// WithMaxBodySize sets how many bytes of a page are parsed.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// NewSpider creates a Spider that fetches pages with client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:      client,
		state:       model.NewCrawlState(),
		reporter:    progress.Discard,
		logger:      slog.Default(),
		maxBodySize: DefaultMaxBodySize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the crawl state. It is the live state, not a copy.
func (s *Spider) State() *model.CrawlState {
	return s.state
}

// Crawl scrapes seedURL and then every page pushed to the to-visit stack,
// most recent first, until the stack is empty.
//
// On a fetch error or context cancellation the crawl stops and the state
// remains consistent: the failed URL is back on the stack and nothing
// is marked visited that was not fully scraped.
func (s *Spider) Crawl(ctx context.Context, seedURL string, targets, follow []string) error {
	seed, err := validateSeed(seedURL)
	if err != nil {
		return err
	}

	classifier := NewClassifier(targets, follow)
	start := s.now()

	if s.state.IsVisited(seed) {
		s.logger.Debug("seed already visited, resuming", "seed", seed, "to_visit", s.state.Stats().ToVisit)
	} else {
		if err := s.scrape(ctx, seed, classifier); err != nil {
			return err
		}
		s.state.MarkVisited(seed)
		s.reporter.Update(s.state.Stats().String())
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, ok := s.state.Pop()
		if !ok {
			break
		}

		if err := s.scrape(ctx, next, classifier); err != nil {
			s.state.Push(next)
			return err
		}
		s.state.MarkVisited(next)
		s.reporter.Update(s.state.Stats().String())
	}

	s.reporter.Report(progress.Finished(s.now().Sub(start)))
	return nil
}

// DownloadAll downloads every target link into directory.
func (s *Spider) DownloadAll(ctx context.Context, d Downloader, directory string) ([]*fetcher.Result, error) {
	return d.DownloadAll(ctx, s.state.Targets(), directory)
}

// scrape fetches pageURL and classifies its links into the state.
func (s *Spider) scrape(ctx context.Context, pageURL string, classifier *Classifier) error {
	s.current = pageURL
	defer func() { s.current = "" }()

	links, err := s.fetchLinks(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrFetchPage, pageURL, err)
	}

	for _, link := range links {
		switch classifier.Classify(link.URL, s.known) {
		case ClassTarget:
			s.state.AddTarget(link)
		case ClassToVisit:
			if s.robots != nil && !s.robots.Allowed(ctx, link.URL) {
				s.logger.Debug("disallowed by robots.txt", "url", link.URL)
				continue
			}
			s.state.Push(link.URL)
		case ClassIgnore:
		}
	}

	s.logger.Debug("scraped page", "url", pageURL, "links", len(links))
	return nil
}

// known reports whether rawURL is visited, queued or being scraped.
func (s *Spider) known(rawURL string) bool {
	return rawURL == s.current || s.state.IsVisited(rawURL) || s.state.IsQueued(rawURL)
}

// fetchLinks downloads pageURL and returns its anchors resolved against
// the page's origin.
func (s *Spider) fetchLinks(ctx context.Context, pageURL string) ([]model.LinkRecord, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("page returned non-success status", "url", pageURL, "status", resp.StatusCode)
	}

	return ParseLinks(io.LimitReader(resp.Body, s.maxBodySize), resp.Header.Get("Content-Type"), Origin(u))
}

// validateSeed checks that seedURL is an absolute http(s) URL.
func validateSeed(seedURL string) (string, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeedURL, seedURL)
	}
	return seedURL, nil
}
