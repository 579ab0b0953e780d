package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/xlharvest/internal/model"
)

// BatchProcessor runs a pipeline over many jobs with bounded concurrency.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each job.
	pipelineFactory func() *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many jobs run at once. The default is 1,
// which processes rows in sheet order.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// BatchSummary counts the outcome of a batch.
type BatchSummary struct {
	Jobs     int
	Failed   int
	Series   int
	Stored   int
	Duration time.Duration
}

// ProcessBatch runs every job. Job failures are recorded in job.Err and
// do not stop the batch; the returned error is non-nil only when ctx is
// cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []*model.SourceJob) (BatchSummary, error) {
	bp.logger.Info("starting build",
		"jobs", len(jobs),
		"concurrency", bp.concurrency,
	)

	start := time.Now()
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				job.Err = err
				return err
			}

			bp.logger.Debug("processing row",
				"source", job.Source,
				"file", job.Row.Filename,
				"index", i+1,
				"total", len(jobs),
			)

			if err := bp.pipelineFactory().Execute(gctx, job); err != nil {
				failed.Add(1)
				bp.logger.Warn("row failed",
					"source", job.Source,
					"file", job.Row.Filename,
					"error", err,
				)
			}
			return nil
		})
	}

	err := g.Wait()

	summary := BatchSummary{
		Jobs:     len(jobs),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	for _, job := range jobs {
		summary.Series += job.SeriesCount()
		summary.Stored += job.Stored
	}

	bp.logger.Info("build complete",
		"jobs", summary.Jobs,
		"failed", summary.Failed,
		"stored", summary.Stored,
		"elapsed", summary.Duration,
	)
	return summary, err
}
