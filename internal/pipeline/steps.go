package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/xlharvest/internal/database"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/progress"
	"github.com/nao1215/xlharvest/internal/xlseries"
)

// ErrDownloadFailed is returned by DownloadStep when the server answered
// with a non-2xx status.
var ErrDownloadFailed = errors.New("download failed")

// FileDownloader downloads a single file. *fetcher.Fetcher implements it.
type FileDownloader interface {
	Download(ctx context.Context, rawURL, filename, directory string) (*fetcher.Result, error)
}

// DownloadRecorder keeps a manifest of download attempts.
// *database.Store implements it.
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, rec *database.DownloadRecord) error
}

// SeriesWriter stores observations. *database.Store implements it.
type SeriesWriter interface {
	UpsertSeries(ctx context.Context, entries []model.SeriesEntry) (int, error)
}

// DownloadStep fetches the row's spreadsheet into the cache directory.
// With useCache the existing file is used as-is.
type DownloadStep struct {
	downloader FileDownloader
	directory  string
	useCache   bool
	recorder   DownloadRecorder
	logger     *slog.Logger
}

// DownloadStepOption configures a DownloadStep.
type DownloadStepOption func(*DownloadStep)

// WithUseCache skips downloading and uses the cached file.
func WithUseCache(useCache bool) DownloadStepOption {
	return func(s *DownloadStep) {
		s.useCache = useCache
	}
}

// WithDownloadRecorder records every attempt in recorder.
func WithDownloadRecorder(recorder DownloadRecorder) DownloadStepOption {
	return func(s *DownloadStep) {
		s.recorder = recorder
	}
}

// WithDownloadLogger sets a custom logger for the download step.
func WithDownloadLogger(logger *slog.Logger) DownloadStepOption {
	return func(s *DownloadStep) {
		s.logger = logger
	}
}

// NewDownloadStep creates a DownloadStep writing into directory.
func NewDownloadStep(downloader FileDownloader, directory string, opts ...DownloadStepOption) *DownloadStep {
	s := &DownloadStep{
		downloader: downloader,
		directory:  directory,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download"
}

// Do executes the download step.
func (s *DownloadStep) Do(ctx context.Context, job *model.SourceJob) error {
	job.Path = filepath.Join(s.directory, job.Row.Filename)
	if s.useCache {
		s.logger.Debug("using cached file", "path", job.Path)
		return nil
	}

	result, err := s.downloader.Download(ctx, job.Row.DownloadLink, job.Row.Filename, s.directory)
	if err != nil {
		return err
	}

	if s.recorder != nil {
		rec := &database.DownloadRecord{
			Path:        result.Path,
			URL:         result.URL,
			Status:      result.Status.String(),
			StatusCode:  result.StatusCode,
			Bytes:       result.Bytes,
			Digest:      result.Digest,
			AttemptedAt: result.CompletedAt,
		}
		if err := s.recorder.RecordDownload(ctx, rec); err != nil {
			s.logger.Warn("failed to record download", "path", result.Path, "error", err)
		}
	}

	if result.Status == fetcher.StatusFailed {
		return fmt.Errorf("%w: %s: status %d", ErrDownloadFailed, job.Row.DownloadLink, result.StatusCode)
	}
	return nil
}

// ExtractStep reads the series of the job's spreadsheet.
type ExtractStep struct {
	extractor xlseries.Extractor
	reporter  progress.Reporter
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(extractor xlseries.Extractor, reporter progress.Reporter) *ExtractStep {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &ExtractStep{extractor: extractor, reporter: reporter}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extract step.
func (s *ExtractStep) Do(_ context.Context, job *model.SourceJob) error {
	params, err := xlseries.ParseParams(job.Row)
	if err != nil {
		return fmt.Errorf("%s: %w", job.Row.Filename, err)
	}

	tables, err := s.extractor.Extract(job.Path, params)
	if err != nil {
		return fmt.Errorf("%s: %w", job.Row.Filename, err)
	}
	job.Tables = tables

	s.reporter.Report(fmt.Sprintf("%d series were scraped from %s", job.SeriesCount(), job.Row.Filename))
	return nil
}

// StoreStep upserts the extracted observations.
type StoreStep struct {
	writer SeriesWriter
}

// NewStoreStep creates a StoreStep.
func NewStoreStep(writer SeriesWriter) *StoreStep {
	return &StoreStep{writer: writer}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do executes the store step.
func (s *StoreStep) Do(ctx context.Context, job *model.SourceJob) error {
	entries := Entries(job)
	n, err := s.writer.UpsertSeries(ctx, entries)
	if err != nil {
		return err
	}
	job.Stored += n
	return nil
}

// Entries flattens the job's tables into rows keyed on
// (source, name, date, frequency).
func Entries(job *model.SourceJob) []model.SeriesEntry {
	entries := make([]model.SeriesEntry, 0)
	for _, table := range job.Tables {
		for _, obs := range table.Observations {
			entries = append(entries, model.SeriesEntry{
				Source:      job.Source,
				Categories:  job.Row.Categories,
				Description: job.Row.Description,
				Name:        obs.Name,
				Date:        obs.Date,
				Value:       obs.Value,
				Frequency:   table.Frequency,
			})
		}
	}
	return entries
}

// BuildOptions configures NewBuildPipeline.
type BuildOptions struct {
	Downloader FileDownloader
	Directory  string
	UseCache   bool
	Extractor  xlseries.Extractor
	Store      *database.Store
	Reporter   progress.Reporter
	Logger     *slog.Logger
}

// NewBuildPipeline returns the download, extract and store pipeline.
func NewBuildPipeline(opts BuildOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = xlseries.NewCellExtractor()
	}

	downloadOpts := []DownloadStepOption{WithUseCache(opts.UseCache), WithDownloadLogger(logger)}
	if opts.Store != nil {
		downloadOpts = append(downloadOpts, WithDownloadRecorder(opts.Store))
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewDownloadStep(opts.Downloader, opts.Directory, downloadOpts...),
		NewExtractStep(extractor, opts.Reporter),
	)
	if opts.Store != nil {
		p.AddStep(NewStoreStep(opts.Store))
	}
	return p
}
