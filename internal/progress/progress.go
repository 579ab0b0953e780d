// Package progress provides the observer that receives human-readable
// status lines from long-running crawls and downloads.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Reporter receives human-readable status lines.
type Reporter interface {
	// Report records a completed status line.
	Report(line string)

	// Update records an in-progress line that supersedes the previous
	// in-progress line (e.g. "Downloaded 3 of 10 files.").
	Update(line string)
}

// Func adapts a function to the Reporter interface. Both completed and
// in-progress lines are passed to the function.
type Func func(line string)

// Report calls f(line).
func (f Func) Report(line string) { f(line) }

// Update calls f(line).
func (f Func) Update(line string) { f(line) }

// Discard is a Reporter that drops every line.
var Discard Reporter = Func(func(string) {})

// WriterReporter writes status lines to an io.Writer. In-progress lines
// are rewritten in place with a carriage return when inline is enabled,
// and written as regular lines otherwise.
// It is safe for concurrent use.
type WriterReporter struct {
	w       io.Writer
	inline  bool
	mu      sync.Mutex
	pending int
}

// NewWriterReporter creates a Reporter writing to w.
func NewWriterReporter(w io.Writer, inline bool) *WriterReporter {
	return &WriterReporter{w: w, inline: inline}
}

// Report writes line followed by a newline, ending any in-progress line.
func (r *WriterReporter) Report(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending > 0 {
		fmt.Fprintln(r.w)
		r.pending = 0
	}
	fmt.Fprintln(r.w, line)
}

// Update writes an in-progress line.
func (r *WriterReporter) Update(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inline {
		fmt.Fprintln(r.w, line)
		return
	}

	// Pad with spaces so a shorter line fully covers the previous one.
	padding := ""
	if r.pending > len(line) {
		padding = strings.Repeat(" ", r.pending-len(line))
	}
	fmt.Fprintf(r.w, "\r%s%s", line, padding)
	r.pending = len(line)
}

// Finished formats the closing line of a long-running operation.
func Finished(elapsed time.Duration) string {
	return fmt.Sprintf("Finished in %.2f minutes", elapsed.Minutes())
}
