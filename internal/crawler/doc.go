// Package crawler discovers spreadsheet download links on a website.
//
// # Architecture
//
// The Spider owns a model.CrawlState and drives a single-threaded work
// loop: the seed page is scraped, then the most recently queued URL is
// popped and scraped until nothing remains. Every anchor found on a page
// is resolved against the page's origin and classified:
//
//   - target: the URL contains one of the target substrings; the link is
//     appended to the state's targets
//   - to-visit: the URL contains one of the follow substrings, is not
//     visited or queued, and does not end in a file extension; it is
//     pushed onto the to-visit stack
//   - ignored: everything else
//
// Target classification wins over to-visit classification.
//
// # Resuming
//
// A Spider created WithState continues a saved crawl. If the seed is
// already visited, its scrape is skipped and the loop resumes from the
// saved stack. A page fetch failure puts the URL back on the stack before
// returning, so the state can be saved and the crawl resumed later.
//
// # Politeness
//
// WithDelay spaces page requests using a token bucket limiter, and
// WithRobots keeps URLs disallowed by robots.txt off the stack.
//
// # Usage
//
//	spider := crawler.NewSpider(client, crawler.WithReporter(reporter))
//	err := spider.Crawl(ctx, "https://www.indec.gob.ar", []string{".xls"}, []string{"/nivel4"})
//	targets := spider.State().Targets()
package crawler
