package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/xlharvest/internal/model"
)

// Step is one stage of the build. Steps run in sequence, each receiving
// the job as left by the previous steps.
type Step interface {
	// Do executes the step. A returned error stops the job unless the
	// pipeline continues on error.
	Do(ctx context.Context, job *model.SourceJob) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after one fails. The
// default stops, since extraction needs the downloaded file and storage
// needs the extracted tables.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step on job. The last step error is kept in
// job.Err; the first one is returned unless the pipeline continues on
// error.
func (p *Pipeline) Execute(ctx context.Context, job *model.SourceJob) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"file", job.Row.Filename,
				"reason", err,
			)
			job.Err = err
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"source", job.Source,
			"file", job.Row.Filename,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"source", job.Source,
				"file", job.Row.Filename,
				"error", err,
			)
			job.Err = err
			if !p.continueOnError {
				return err
			}
		}

		job.PerformedSteps = append(job.PerformedSteps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
