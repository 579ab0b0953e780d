package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/xlharvest/internal/database"
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// verbose adds the URL and description of every target.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeTargets(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Name:      %s\n", s.Name)
	if s.Seed != "" {
		fmt.Fprintf(sb, "Seed:      %s\n", s.Seed)
	}
	if s.Format != "" {
		fmt.Fprintf(sb, "Format:    %s\n", s.Format)
	}
	if s.Complete() {
		sb.WriteString("Status:    Complete\n")
	} else {
		fmt.Fprintf(sb, "Status:    Incomplete (%d URLs left to visit)\n", s.ToVisit)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *CrawlSummary) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Targets:    %d\n", s.Targets)
	fmt.Fprintf(sb, "  To visit:   %d\n", s.ToVisit)
	fmt.Fprintf(sb, "  Visited:    %d\n", s.Visited)
	if s.DownloadDir != "" {
		fmt.Fprintf(sb, "  Downloaded: %d (%s)\n", s.Downloaded, s.DownloadDir)
	}
	sb.WriteString("\n")

	if len(s.Extensions) > 0 {
		parts := make([]string, 0, len(s.Extensions))
		for _, e := range s.Extensions {
			parts = append(parts, fmt.Sprintf("%s=%d", e.Extension, e.Count))
		}
		fmt.Fprintf(sb, "  By type:    %s\n\n", strings.Join(parts, ", "))
	}
}

func (w *SimpleWriter) writeTargets(sb *strings.Builder, s *CrawlSummary) {
	section(sb, "TARGETS")

	if len(s.Links) == 0 {
		sb.WriteString("  No download links collected.\n\n")
		return
	}

	for _, t := range s.Links {
		mark := " "
		if t.Downloaded {
			mark = "x"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", mark, t.Filename)
		if w.verbose {
			if t.Description != "" {
				fmt.Fprintf(sb, "      %s\n", t.Description)
			}
			fmt.Fprintf(sb, "      %s\n", t.URL)
		}
	}
	sb.WriteString("\n")
}

// WriteHistory outputs crawl runs as a fixed-width table.
func (w *SimpleWriter) WriteHistory(runs []database.CrawlRun) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No crawl runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-5s %-16s %-23s %8s %8s %8s %10s  %s\n",
		"ID", "NAME", "STARTED", "TARGETS", "TO VISIT", "VISITED", "DURATION", "RESULT")
	for _, r := range runs {
		result := "ok"
		if r.Error != "" {
			result = "error: " + r.Error
		}
		fmt.Fprintf(&sb, "%-5d %-16s %-23s %8d %8d %8d %10s  %s\n",
			r.ID,
			truncateString(r.Name, 16),
			r.StartedAt.Format(timeLayout),
			r.Stats.Targets,
			r.Stats.ToVisit,
			r.Stats.Visited,
			r.Duration().Round(time.Second).String(),
			result,
		)
	}
	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
