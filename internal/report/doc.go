// Package report renders saved crawl state and crawl history.
//
// Three formats are available:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured output for other tools
//   - MarkdownWriter: tables and a mermaid chart for sharing
//
// The data a report shows is built once by NewCrawlSummary and handed to
// any Writer, so adding a format does not touch the crawl packages.
package report
