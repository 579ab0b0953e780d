package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/xlharvest/internal/database"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	if len(summary.Extensions) > 0 {
		w.writePieChart(md, summary)
	}
	w.writeTargets(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *CrawlSummary) {
	md.H1("Crawl Report: " + s.Name)
	md.PlainText("")

	rows := [][]string{
		{"Seed", s.Seed},
		{"State Format", s.Format},
		{"Generated", s.GeneratedAt.Format(timeLayout)},
		{"Targets", strconv.Itoa(s.Targets)},
		{"To Visit", strconv.Itoa(s.ToVisit)},
		{"Visited", strconv.Itoa(s.Visited)},
	}
	if s.DownloadDir != "" {
		rows = append(rows, []string{"Downloaded", fmt.Sprintf("%d of %d", s.Downloaded, s.Targets)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *CrawlSummary) {
	switch {
	case !s.Complete():
		md.Warningf("Crawl is incomplete: %d URL(s) left to visit. Run `xlharvest crawl --resume` to continue.", s.ToVisit)
	case s.Targets == 0:
		md.Note("The crawl finished without collecting download links.")
	default:
		md.Tip("Crawl complete.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Targets by File Type"),
		piechart.WithShowData(true),
	)
	for _, e := range s.Extensions {
		chart.LabelAndIntValue(e.Extension, uint64(e.Count))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeTargets(md *markdown.Markdown, s *CrawlSummary) {
	md.H2("Targets")
	md.PlainText("")

	if len(s.Links) == 0 {
		md.PlainText("No download links collected.")
		md.PlainText("")
		return
	}

	headers := []string{"Filename", "Description"}
	if s.DownloadDir != "" {
		headers = append(headers, "Downloaded")
	}
	rows := make([][]string, 0, len(s.Links))
	for _, t := range s.Links {
		row := []string{link(t.Filename, t.URL), escapeCell(truncateString(t.Description, 80))}
		if s.DownloadDir != "" {
			row = append(row, yesNo(t.Downloaded))
		}
		rows = append(rows, row)
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteHistory outputs crawl runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []database.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No crawl runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		result := "ok"
		if r.Error != "" {
			result = escapeCell(r.Error)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			r.StartedAt.Format(timeLayout),
			strconv.Itoa(r.Stats.Targets),
			strconv.Itoa(r.Stats.ToVisit),
			strconv.Itoa(r.Stats.Visited),
			r.Duration().Round(time.Second).String(),
			result,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Name", "Started", "Targets", "To Visit", "Visited", "Duration", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [xlharvest](https://github.com/nao1215/xlharvest)*")
}

func link(text, url string) string {
	if url == "" {
		return escapeCell(text)
	}
	return "[" + escapeCell(text) + "](" + url + ")"
}

// escapeCell keeps pipes and newlines from breaking table rows.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "\r", "").Replace(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
