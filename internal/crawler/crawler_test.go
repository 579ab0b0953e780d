package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
)

// site serves a fixed set of HTML pages and counts requests per path.
type site struct {
	pages  map[string]string
	broken map[string]bool

	mu   sync.Mutex
	hits map[string]int
}

func newSite(t *testing.T, pages map[string]string) (*site, *httptest.Server) {
	t.Helper()

	s := &site{pages: pages, broken: map[string]bool{}, hits: map[string]int{}}
	server := httptest.NewServer(s)
	t.Cleanup(server.Close)
	return s, server
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	broken := s.broken[r.URL.Path]
	s.mu.Unlock()

	if broken {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "no hijack", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

func (s *site) setBroken(path string, broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[path] = broken
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func page(anchors ...string) string {
	return "<html><body>" + strings.Join(anchors, "\n") + "</body></html>"
}

// TestParseLinks tests anchor extraction and URL resolution.
func TestParseLinks(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("http://site.com")

	t.Run("resolves hrefs against base", func(t *testing.T) {
		t.Parallel()

		doc := page(
			`<a href="/x.pdf">A</a>`,
			`<a href="page2">B</a>`,
			`<a href="http://other.com/file.xlsx">C</a>`,
			`<a href="../up/file.xls">D</a>`,
		)
		links, err := ParseLinks(strings.NewReader(doc), "text/html", base)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []model.LinkRecord{
			{Description: "A", URL: "http://site.com/x.pdf"},
			{Description: "B", URL: "http://site.com/page2"},
			{Description: "C", URL: "http://other.com/file.xlsx"},
			{Description: "D", URL: "http://site.com/up/file.xls"},
		}
		if !slices.Equal(links, want) {
			t.Errorf("got %v, want %v", links, want)
		}
	})

	t.Run("skips empty and malformed hrefs", func(t *testing.T) {
		t.Parallel()

		doc := page(`<a href="">empty</a>`, `<a>none</a>`, `<a href="http://[::1">bad</a>`, `<a href="/ok">ok</a>`)
		links, err := ParseLinks(strings.NewReader(doc), "text/html", base)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://site.com/ok" {
			t.Errorf("expected only the valid link, got %v", links)
		}
	})

	t.Run("keeps visible text untrimmed", func(t *testing.T) {
		t.Parallel()

		doc := page(`<a href="/a.xls"> Serie <b>mensual</b> </a>`)
		links, err := ParseLinks(strings.NewReader(doc), "text/html", base)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if links[0].Description != " Serie mensual " {
			t.Errorf("unexpected description %q", links[0].Description)
		}
	})

	t.Run("decodes latin-1 pages", func(t *testing.T) {
		t.Parallel()

		// "Población" in ISO-8859-1.
		doc := "<html><body><a href=\"/p.xls\">Poblaci\xf3n</a></body></html>"
		links, err := ParseLinks(strings.NewReader(doc), "text/html; charset=iso-8859-1", base)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if links[0].Description != "Población" {
			t.Errorf("unexpected description %q", links[0].Description)
		}
	})

	t.Run("normalizes to NFC", func(t *testing.T) {
		t.Parallel()

		// "o" followed by a combining acute accent.
		doc := page("<a href=\"/p.xls\">Poblacio\u0301n</a>")
		links, err := ParseLinks(strings.NewReader(doc), "text/html", base)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if links[0].Description != "Población" {
			t.Errorf("expected composed form, got %q", links[0].Description)
		}
	})
}

// TestOrigin tests origin extraction.
func TestOrigin(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("https://user@site.com:8443/a/b?q=1#frag")
	if got := Origin(u).String(); got != "https://site.com:8443" {
		t.Errorf("Origin() = %q", got)
	}
}

// TestClassifier tests link classification rules.
func TestClassifier(t *testing.T) {
	t.Parallel()

	none := func(string) bool { return false }
	all := func(string) bool { return true }

	tests := []struct {
		name    string
		targets []string
		follow  []string
		url     string
		known   func(string) bool
		want    Class
	}{
		{"target wins over follow", []string{".xlsx"}, []string{"/page"}, "http://s.com/page/a.xlsx", none, ClassTarget},
		{"target even when known", []string{".xlsx"}, nil, "http://s.com/a.xlsx", all, ClassTarget},
		{"follow match", nil, []string{"/page"}, "http://s.com/page2", none, ClassToVisit},
		{"known is ignored", nil, []string{"/page"}, "http://s.com/page2", all, ClassIgnore},
		{"file extension is ignored", nil, []string{"/page"}, "http://s.com/page/x.pdf", none, ClassIgnore},
		{"extension is case insensitive", nil, []string{"/page"}, "http://s.com/page/X.XLS", none, ClassIgnore},
		{"extension ignores query", nil, []string{"/page"}, "http://s.com/page/x.zip?dl=1", none, ClassIgnore},
		{"no match", []string{".xlsx"}, []string{"/page"}, "http://s.com/x.pdf", none, ClassIgnore},
		{"empty substring sets", nil, nil, "http://s.com/page", none, ClassIgnore},
		{"empty substrings dropped", []string{""}, []string{""}, "http://s.com/page", none, ClassIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewClassifier(tt.targets, tt.follow)
			if got := c.Classify(tt.url, tt.known); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

// TestSpiderScrape tests classification of a single page into the state.
func TestSpiderScrape(t *testing.T) {
	t.Parallel()

	_, server := newSite(t, map[string]string{
		"/": page(
			`<a href="/x.pdf">A</a>`,
			`<a href="/page2">B</a>`,
			`<a href="http://other.com/file.xlsx">C</a>`,
		),
	})

	spider := NewSpider(server.Client())
	if err := spider.scrape(context.Background(), server.URL+"/", NewClassifier([]string{".xlsx"}, []string{"/page"})); err != nil {
		t.Fatalf("scrape failed: %v", err)
	}

	state := spider.State()
	wantTargets := []model.LinkRecord{{Description: "C", URL: "http://other.com/file.xlsx"}}
	if !slices.Equal(state.Targets(), wantTargets) {
		t.Errorf("targets = %v, want %v", state.Targets(), wantTargets)
	}
	wantToVisit := []string{server.URL + "/page2"}
	if !slices.Equal(state.ToVisit(), wantToVisit) {
		t.Errorf("toVisit = %v, want %v", state.ToVisit(), wantToVisit)
	}
}

// TestSpiderCrawl tests the full crawl loop.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("visits every page once and collects targets", func(t *testing.T) {
		t.Parallel()

		s, server := newSite(t, map[string]string{
			"/": page(
				`<a href="/page1">one</a>`,
				`<a href="/page2">two</a>`,
				`<a href="/">home</a>`,
			),
			"/page1": page(`<a href="/page2">two again</a>`, `<a href="/data/a.xlsx">A</a>`),
			"/page2": page(`<a href="/page1">one again</a>`, `<a href="/data/b.xlsx">B</a>`, `<a href="/page2">self</a>`),
		})

		var lines []string
		spider := NewSpider(server.Client(), WithReporter(funcReporter(func(l string) { lines = append(lines, l) })))
		if err := spider.Crawl(context.Background(), server.URL+"/", []string{".xlsx"}, []string{"/page", "/"}); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		state := spider.State()
		visited := state.Visited()
		if len(visited) != 3 {
			t.Errorf("expected 3 visited pages, got %v", visited)
		}
		for _, p := range []string{"/", "/page1", "/page2"} {
			if s.hitCount(p) != 1 {
				t.Errorf("expected %s fetched once, got %d", p, s.hitCount(p))
			}
		}
		if state.Pending() {
			t.Errorf("toVisit should be empty, got %v", state.ToVisit())
		}
		if len(state.Targets()) != 2 {
			t.Errorf("expected 2 targets, got %v", state.Targets())
		}

		// LIFO: page2 was pushed last from the seed, so it is scraped first.
		if visited[1] != server.URL+"/page2" {
			t.Errorf("expected page2 scraped second, got %v", visited)
		}
		if len(lines) == 0 || !strings.HasPrefix(lines[len(lines)-1], "Finished in ") {
			t.Errorf("missing final line: %v", lines)
		}
		if !slices.Contains(lines, "Scraped: 0 To visit: 2 Visited: 1") {
			t.Errorf("missing seed progress line: %v", lines)
		}
	})

	t.Run("duplicate target anchors are kept", func(t *testing.T) {
		t.Parallel()

		_, server := newSite(t, map[string]string{
			"/": page(`<a href="/a.xlsx">first</a>`, `<a href="/a.xlsx">second</a>`),
		})

		spider := NewSpider(server.Client())
		if err := spider.Crawl(context.Background(), server.URL+"/", []string{".xlsx", "a."}, nil); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if n := len(spider.State().Targets()); n != 2 {
			t.Errorf("expected 2 target entries, got %d", n)
		}
	})

	t.Run("fetch error leaves URL on the stack", func(t *testing.T) {
		t.Parallel()

		s, server := newSite(t, map[string]string{
			"/":      page(`<a href="/page1">one</a>`),
			"/page1": page(`<a href="/data/a.xlsx">A</a>`),
		})
		s.setBroken("/page1", true)

		spider := NewSpider(server.Client())
		err := spider.Crawl(context.Background(), server.URL+"/", []string{".xlsx"}, []string{"/page"})
		if !errors.Is(err, ErrFetchPage) {
			t.Fatalf("expected ErrFetchPage, got %v", err)
		}

		state := spider.State()
		if !slices.Equal(state.ToVisit(), []string{server.URL + "/page1"}) {
			t.Errorf("failed URL should be queued, got %v", state.ToVisit())
		}
		if state.IsVisited(server.URL + "/page1") {
			t.Error("failed URL should not be visited")
		}

		// Resume with the same state once the page works again.
		s.setBroken("/page1", false)
		resumed := NewSpider(server.Client(), WithState(state))
		if err := resumed.Crawl(context.Background(), server.URL+"/", []string{".xlsx"}, []string{"/page"}); err != nil {
			t.Fatalf("resume failed: %v", err)
		}
		if s.hitCount("/") != 1 {
			t.Errorf("seed should not be scraped again, got %d hits", s.hitCount("/"))
		}
		if len(resumed.State().Targets()) != 1 {
			t.Errorf("expected 1 target after resume, got %v", resumed.State().Targets())
		}
	})

	t.Run("seed fetch error leaves state empty", func(t *testing.T) {
		t.Parallel()

		s, server := newSite(t, map[string]string{"/": page()})
		s.setBroken("/", true)

		spider := NewSpider(server.Client())
		err := spider.Crawl(context.Background(), server.URL+"/", nil, nil)
		if !errors.Is(err, ErrFetchPage) {
			t.Fatalf("expected ErrFetchPage, got %v", err)
		}
		if spider.State().Stats() != (model.CrawlStats{}) {
			t.Errorf("expected empty state, got %v", spider.State().Stats())
		}
	})

	t.Run("cancelled context stops the crawl", func(t *testing.T) {
		t.Parallel()

		_, server := newSite(t, map[string]string{"/": page(`<a href="/page1">one</a>`)})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		spider := NewSpider(server.Client())
		err := spider.Crawl(ctx, server.URL+"/", nil, []string{"/page"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("rejects invalid seed", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(http.DefaultClient)
		for _, seed := range []string{"", "/relative", "ftp://host/x", "http://"} {
			if err := spider.Crawl(context.Background(), seed, nil, nil); !errors.Is(err, ErrInvalidSeedURL) {
				t.Errorf("seed %q: expected ErrInvalidSeedURL, got %v", seed, err)
			}
		}
	})

	t.Run("robots.txt keeps disallowed pages off the stack", func(t *testing.T) {
		t.Parallel()

		s, server := newSite(t, map[string]string{
			"/robots.txt":  "User-agent: *\nDisallow: /private\n",
			"/":            page(`<a href="/private/page">secret</a>`, `<a href="/public/page">open</a>`),
			"/public/page": page(),
		})

		client := server.Client()
		spider := NewSpider(client, WithRobots(NewRobotsPolicy(client, "xlharvest", nil)))
		if err := spider.Crawl(context.Background(), server.URL+"/", nil, []string{"/page"}); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if s.hitCount("/private/page") != 0 {
			t.Error("disallowed page was fetched")
		}
		if s.hitCount("/public/page") != 1 {
			t.Error("allowed page was not fetched")
		}
		if s.hitCount("/robots.txt") != 1 {
			t.Errorf("robots.txt should be fetched once, got %d", s.hitCount("/robots.txt"))
		}
	})
}

// fakeDownloader records the links it is asked to download.
type fakeDownloader struct {
	links []model.LinkRecord
	dir   string
}

func (f *fakeDownloader) DownloadAll(_ context.Context, links []model.LinkRecord, dir string) ([]*fetcher.Result, error) {
	f.links = links
	f.dir = dir
	return make([]*fetcher.Result, len(links)), nil
}

// TestSpiderDownloadAll tests delegation of target downloads.
func TestSpiderDownloadAll(t *testing.T) {
	t.Parallel()

	state := model.NewCrawlState()
	state.AddTarget(model.NewLinkRecord("A", "http://x.com/a.xlsx"))

	spider := NewSpider(http.DefaultClient, WithState(state))
	d := &fakeDownloader{}
	if _, err := spider.DownloadAll(context.Background(), d, "cache"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.links) != 1 || d.dir != "cache" {
		t.Errorf("unexpected delegation: %v %q", d.links, d.dir)
	}
}

type funcReporter func(string)

func (f funcReporter) Report(line string) { f(line) }
func (f funcReporter) Update(line string) { f(line) }
