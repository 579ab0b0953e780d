package model

import "fmt"

// CrawlState holds the three collections that represent crawl progress.
//
//   - visited: URLs already scraped, in the order they were scraped
//   - toVisit: a LIFO stack of URLs pending scrape
//   - targets: confirmed artifacts, append-only, duplicates permitted
//
// A URL present in visited is never pushed to toVisit, and a URL already
// in toVisit is never pushed twice. CrawlState is not safe for concurrent
// use; the crawl loop is its only mutator.
type CrawlState struct {
	visited    []string
	visitedSet map[string]struct{}

	toVisit   []string
	queuedSet map[string]struct{}

	targets []LinkRecord
}

// NewCrawlState creates an empty CrawlState.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		visited:    make([]string, 0),
		visitedSet: make(map[string]struct{}),
		toVisit:    make([]string, 0),
		queuedSet:  make(map[string]struct{}),
		targets:    make([]LinkRecord, 0),
	}
}

// RestoreCrawlState rebuilds a CrawlState from persisted collections.
// Duplicate entries in visited or toVisit are dropped, so a hand-edited
// file never queues a URL twice. Targets are kept as-is.
func RestoreCrawlState(visited, toVisit []string, targets []LinkRecord) *CrawlState {
	s := NewCrawlState()
	for _, u := range visited {
		s.MarkVisited(u)
	}
	for _, u := range toVisit {
		s.Push(u)
	}
	s.targets = append(s.targets, targets...)
	return s
}

// IsVisited reports whether url has already been scraped.
func (s *CrawlState) IsVisited(url string) bool {
	_, ok := s.visitedSet[url]
	return ok
}

// IsQueued reports whether url is waiting in toVisit.
func (s *CrawlState) IsQueued(url string) bool {
	_, ok := s.queuedSet[url]
	return ok
}

// MarkVisited records url as scraped. It returns false if url was
// already visited.
func (s *CrawlState) MarkVisited(url string) bool {
	if s.IsVisited(url) {
		return false
	}
	s.visitedSet[url] = struct{}{}
	s.visited = append(s.visited, url)
	return true
}

// Push adds url to the top of the toVisit stack. It returns false and
// leaves the state unchanged when url is visited or already queued.
func (s *CrawlState) Push(url string) bool {
	if s.IsVisited(url) || s.IsQueued(url) {
		return false
	}
	s.queuedSet[url] = struct{}{}
	s.toVisit = append(s.toVisit, url)
	return true
}

// Pop removes and returns the most recently pushed URL.
func (s *CrawlState) Pop() (string, bool) {
	if len(s.toVisit) == 0 {
		return "", false
	}
	last := len(s.toVisit) - 1
	url := s.toVisit[last]
	s.toVisit = s.toVisit[:last]
	delete(s.queuedSet, url)
	return url, true
}

// AddTarget appends a confirmed target link.
func (s *CrawlState) AddTarget(link LinkRecord) {
	s.targets = append(s.targets, link)
}

// Visited returns a copy of the visited URLs in scrape order.
func (s *CrawlState) Visited() []string {
	return append(make([]string, 0, len(s.visited)), s.visited...)
}

// ToVisit returns a copy of the pending URLs, bottom of the stack first.
func (s *CrawlState) ToVisit() []string {
	return append(make([]string, 0, len(s.toVisit)), s.toVisit...)
}

// Targets returns a copy of the target links in discovery order.
func (s *CrawlState) Targets() []LinkRecord {
	return append(make([]LinkRecord, 0, len(s.targets)), s.targets...)
}

// Pending reports whether any URL is waiting in toVisit.
func (s *CrawlState) Pending() bool {
	return len(s.toVisit) > 0
}

// Stats returns the current collection sizes.
func (s *CrawlState) Stats() CrawlStats {
	return CrawlStats{
		Targets: len(s.targets),
		ToVisit: len(s.toVisit),
		Visited: len(s.visited),
	}
}

// CrawlStats contains the sizes of the crawl collections.
type CrawlStats struct {
	Targets int `json:"targets"`
	ToVisit int `json:"to_visit"`
	Visited int `json:"visited"`
}

// String formats the stats as a progress line.
func (c CrawlStats) String() string {
	return fmt.Sprintf("Scraped: %d To visit: %d Visited: %d", c.Targets, c.ToVisit, c.Visited)
}
