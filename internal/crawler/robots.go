package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy answers whether a URL may be crawled according to the
// robots.txt of its host. Each host's robots.txt is fetched once. A
// missing or unreadable robots.txt allows everything.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// NewRobotsPolicy creates a policy that evaluates rules for userAgent.
func NewRobotsPolicy(client *http.Client, userAgent string, logger *slog.Logger) *RobotsPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "*"
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be crawled.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	group := p.group(ctx, u)
	if group == nil {
		return true
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	return group.Test(target)
}

// group returns the cached rules for u's host, fetching them on first use.
func (p *RobotsPolicy) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := Origin(u).String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.groups[key]; ok {
		return g
	}

	g := p.fetch(ctx, key)
	p.groups[key] = g
	return g
}

func (p *RobotsPolicy) fetch(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		p.logger.Debug("robots.txt unreadable", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup(p.userAgent)
}
