package crawler

import (
	"net/url"
	"path"
	"strings"
)

// Class is the classification of a discovered link.
type Class int

const (
	// ClassIgnore means the link is discarded.
	ClassIgnore Class = iota

	// ClassTarget means the link is a kept artifact.
	ClassTarget

	// ClassToVisit means the link is a page to recurse into.
	ClassToVisit
)

// String returns the name of the class.
func (c Class) String() string {
	switch c {
	case ClassTarget:
		return "target"
	case ClassToVisit:
		return "to-visit"
	default:
		return "ignore"
	}
}

// nonNavigableExtensions are file types that are never crawled as pages.
var nonNavigableExtensions = map[string]struct{}{
	"xls":  {},
	"xlsx": {},
	"zip":  {},
	"pps":  {},
	"ppsx": {},
	"rar":  {},
	"pdf":  {},
}

// Classifier decides what to do with a discovered URL.
type Classifier struct {
	targets []string
	follow  []string
}

// NewClassifier creates a Classifier. Empty substrings are dropped since
// they would match every URL.
func NewClassifier(targets, follow []string) *Classifier {
	return &Classifier{
		targets: nonEmpty(targets),
		follow:  nonEmpty(follow),
	}
}

// IsTarget reports whether rawURL contains a target substring.
func (c *Classifier) IsTarget(rawURL string) bool {
	return containsAny(rawURL, c.targets)
}

// Follows reports whether rawURL contains a follow substring and is not a
// file with a non-navigable extension. It does not consult crawl state.
func (c *Classifier) Follows(rawURL string) bool {
	if HasFileExtension(rawURL) {
		return false
	}
	return containsAny(rawURL, c.follow)
}

// Classify classifies rawURL. known reports whether rawURL is already
// visited or queued.
func (c *Classifier) Classify(rawURL string, known func(string) bool) Class {
	if c.IsTarget(rawURL) {
		return ClassTarget
	}
	if c.Follows(rawURL) && !known(rawURL) {
		return ClassToVisit
	}
	return ClassIgnore
}

// HasFileExtension reports whether the final path segment of rawURL has
// one of the non-navigable extensions (xls, xlsx, zip, pps, ppsx, rar,
// pdf). The comparison ignores case.
func HasFileExtension(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	_, ok := nonNavigableExtensions[ext]
	return ok
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
