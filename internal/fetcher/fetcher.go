package fetcher

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/progress"
)

// ChunkSize is the number of bytes read from a response body at a time.
const ChunkSize = 1024

const (
	partSuffix   = ".part"
	failedSuffix = ".failed"
)

// Status is the outcome of a single download.
type Status int

const (
	// StatusDownloaded means the file was written.
	StatusDownloaded Status = iota

	// StatusSkipped means the destination already existed.
	StatusSkipped

	// StatusFailed means the server answered with a non-2xx status.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes a download attempt.
type Result struct {
	URL        string
	Filename   string
	Path       string
	Status     Status
	StatusCode int
	Bytes      int64

	// Digest is the hex BLAKE2b-256 digest of the body. It is only set
	// for StatusDownloaded.
	Digest string

	// CompletedAt is when the attempt finished.
	CompletedAt time.Time
}

// Fetcher downloads files over HTTP.
type Fetcher struct {
	client      *http.Client
	reporter    progress.Reporter
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithReporter sets the progress observer.
func WithReporter(r progress.Reporter) Option {
	return func(f *Fetcher) {
		f.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithConcurrency sets how many files DownloadAll fetches at once.
// Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		f.concurrency = n
	}
}

// New creates a Fetcher that uses client for every request.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		reporter:    progress.Discard,
		logger:      slog.Default(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.concurrency < 1 {
		f.concurrency = 1
	}
	return f
}

// Download streams rawURL to directory/filename, creating directory if
// needed. A non-2xx response is reported and returned as a StatusFailed
// result with a nil error. Transport and filesystem failures are
// returned as errors.
func (f *Fetcher) Download(ctx context.Context, rawURL, filename, directory string) (*Result, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", directory, err)
	}

	dest := filepath.Join(directory, filename)
	result := &Result{URL: rawURL, Filename: filename, Path: dest}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Status = StatusFailed
		result.CompletedAt = f.now()
		if err := writeFailure(dest, rawURL, resp.StatusCode); err != nil {
			return nil, err
		}
		f.logger.Warn("download failed", "url", rawURL, "filename", filename, "status", resp.StatusCode)
		f.reporter.Report(fmt.Sprintf("Failed to download %s from %s: status %d", filename, rawURL, resp.StatusCode))
		return result, nil
	}

	digest := newDigest()
	n, err := writeChunks(dest+partSuffix, resp.Body, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Rename(dest+partSuffix, dest); err != nil {
		return nil, fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	if err := os.Remove(dest + failedSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Debug("failed to remove failure marker", "path", dest+failedSuffix, "error", err)
	}

	result.Status = StatusDownloaded
	result.Bytes = n
	result.Digest = hex.EncodeToString(digest.Sum(nil))
	result.CompletedAt = f.now()

	f.logger.Debug("downloaded file", "url", rawURL, "path", dest, "bytes", n)
	f.reporter.Report(fmt.Sprintf("%s was downloaded in %s", filename, directory))
	return result, nil
}

// DownloadAll downloads every link into directory. The filename is the
// final segment of the link's URL. Links whose destination already
// exists are skipped, as are later links resolving to a filename already
// handled in this call. Results are in link order.
//
// The first error stops scheduling further downloads and is returned
// with the results gathered so far; entries for links that never ran
// are nil.
func (f *Fetcher) DownloadAll(ctx context.Context, links []model.LinkRecord, directory string) ([]*Result, error) {
	start := f.now()
	total := len(links)
	results := make([]*Result, total)

	var (
		mu   sync.Mutex
		done int
	)
	tick := func() {
		mu.Lock()
		done++
		line := fmt.Sprintf("Downloaded %d of %d files.", done, total)
		mu.Unlock()
		f.reporter.Update(line)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	seen := make(map[string]struct{}, total)
	for i, link := range links {
		filename := link.Filename()
		dest := filepath.Join(directory, filename)

		_, dup := seen[filename]
		seen[filename] = struct{}{}
		if dup || filename == "" || exists(dest) {
			results[i] = &Result{URL: link.URL, Filename: filename, Path: dest, Status: StatusSkipped, CompletedAt: f.now()}
			tick()
			continue
		}

		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			res, err := f.Download(gctx, link.URL, filename, directory)
			if err != nil {
				return err
			}
			results[i] = res
			tick()
			return nil
		})
	}

	err := g.Wait()
	f.reporter.Report(progress.Finished(f.now().Sub(start)))
	return results, err
}

// Exists reports whether the download destination for link is present.
func Exists(link model.LinkRecord, directory string) bool {
	return exists(filepath.Join(directory, link.Filename()))
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeChunks copies body to path in ChunkSize reads, feeding digest.
// The file is removed when copying fails.
func writeChunks(path string, body io.Reader, digest hash.Hash) (int64, error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}

	var written int64
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				file.Close()
				os.Remove(path)
				return written, err
			}
			digest.Write(buf[:n])
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			file.Close()
			os.Remove(path)
			return written, readErr
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(path)
		return written, err
	}
	return written, nil
}

// writeFailure records a failed attempt next to dest.
func writeFailure(dest, rawURL string, status int) error {
	content := fmt.Sprintf("status: %d\nurl: %s\n", status, rawURL)
	if err := os.WriteFile(dest+failedSuffix, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write failure marker for %s: %w", dest, err)
	}
	return nil
}

// FailureMarker returns the sentinel path written when dest failed.
func FailureMarker(dest string) string {
	return dest + failedSuffix
}

func newDigest() hash.Hash {
	h, _ := blake2b.New256(nil) //nolint:errcheck // only fails for keys longer than 64 bytes
	return h
}
