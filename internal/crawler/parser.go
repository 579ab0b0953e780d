package crawler

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/xlharvest/internal/model"
)

// Origin returns the scheme and host of u as a URL with no path.
// The port, if any, is kept.
func Origin(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}

// ParseLinks extracts every anchor with a non-empty href from an HTML
// document. Each href is resolved against base; hrefs that cannot be
// parsed are skipped. contentType is the response Content-Type and is
// used to decode non UTF-8 pages.
//
// The description is the anchor's visible text in Unicode NFC form.
func ParseLinks(r io.Reader, contentType string, base *url.URL) ([]model.LinkRecord, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect page encoding: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := make([]model.LinkRecord, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		resolved, ok := resolve(base, href)
		if !ok {
			return
		}
		links = append(links, model.NewLinkRecord(norm.NFC.String(s.Text()), resolved))
	})

	return links, nil
}

// resolve joins href onto base. It returns false for malformed hrefs.
func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref).String()
	if resolved == "" {
		return "", false
	}
	return resolved, true
}
