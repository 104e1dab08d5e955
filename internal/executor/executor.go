// Package executor orchestrates one full pipeline run: fetch the
// source dataset, evaluate the job's transform, format the result as
// CSV, and deliver it to the recipient list. Stage failures stop the
// pipeline and trigger a failure notice instead.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/djlord-it/easy-etl/internal/dataset"
	"github.com/djlord-it/easy-etl/internal/domain"
)

// Fetcher retrieves a job's input dataset.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.Source) (*dataset.Dataset, error)
}

// Transformer evaluates a transform program against a dataset.
type Transformer interface {
	Run(ctx context.Context, code string, input *dataset.Dataset) (*dataset.Dataset, error)
}

// Notifier delivers results and failure notices.
type Notifier interface {
	DeliverSuccess(ctx context.Context, jobName string, recipients []string, csvContent string) error
	DeliverFailure(ctx context.Context, jobName string, recipients []string, stage domain.Stage, message string) error
}

// LastRunRecorder persists a job's last successful run time.
type LastRunRecorder interface {
	SetLastRun(ctx context.Context, name string, t time.Time) error
}

// AnalyticsSink records run outcomes for dashboards. Best-effort: a
// failing sink never fails the run.
type AnalyticsSink interface {
	RecordRun(ctx context.Context, outcome domain.RunOutcome) error
}

// MetricsSink records pipeline metrics. All methods are fire-and-forget.
type MetricsSink interface {
	RunCompleted(stage string, outcome string, duration time.Duration)
}

type Executor struct {
	fetcher     Fetcher
	transformer Transformer
	notifier    Notifier
	registry    LastRunRecorder
	analytics   AnalyticsSink // optional, nil = disabled
	metrics     MetricsSink   // optional, nil = disabled
	log         zerolog.Logger
	clock       func() time.Time
	newRunID    func() uuid.UUID
}

func New(fetcher Fetcher, transformer Transformer, notifier Notifier, registry LastRunRecorder, log zerolog.Logger) *Executor {
	return &Executor{
		fetcher:     fetcher,
		transformer: transformer,
		notifier:    notifier,
		registry:    registry,
		log:         log.With().Str("component", "executor").Logger(),
		clock:       time.Now,
		newRunID:    uuid.New,
	}
}

// WithMetrics attaches a metrics sink.
func (e *Executor) WithMetrics(sink MetricsSink) *Executor {
	e.metrics = sink
	return e
}

// WithAnalytics attaches an analytics sink.
func (e *Executor) WithAnalytics(sink AnalyticsSink) *Executor {
	e.analytics = sink
	return e
}

// Run executes the full pipeline for job. It never panics and never
// returns an error: every failure is absorbed into a failure
// notification and structured logs, so the scheduler goroutine that
// called it cannot be taken down by a bad job.
func (e *Executor) Run(ctx context.Context, job domain.Job) {
	outcome := e.Execute(ctx, job)
	if outcome.Success() {
		e.log.Info().
			Str("job", job.Name).
			Str("run_id", outcome.RunID.String()).
			Int("rows", outcome.Rows).
			Dur("duration", outcome.FinishedAt.Sub(outcome.StartedAt)).
			Msg("run succeeded")
		return
	}
	e.log.Error().
		Str("job", job.Name).
		Str("run_id", outcome.RunID.String()).
		Str("stage", string(outcome.Stage)).
		Err(outcome.Err).
		Msg("run failed")
}

// Execute runs the pipeline and reports the outcome. On success the
// job's last-run time is persisted and the CSV result is mailed out; on
// failure a failure notice is mailed instead. Both follow-ups are
// best-effort: their own failures are logged, never propagated.
func (e *Executor) Execute(ctx context.Context, job domain.Job) (outcome domain.RunOutcome) {
	outcome = domain.RunOutcome{
		RunID:     e.newRunID(),
		JobName:   job.Name,
		StartedAt: e.clock().UTC(),
	}

	defer func() {
		if p := recover(); p != nil {
			outcome.Err = fmt.Errorf("panic: %v", p)
		}
		outcome.FinishedAt = e.clock().UTC()
		e.finish(ctx, job, outcome)
	}()

	log := e.log.With().Str("job", job.Name).Str("run_id", outcome.RunID.String()).Logger()
	log.Info().Str("source", string(job.Source.Type)).Msg("run started")

	csvContent, result, stage, err := e.pipeline(ctx, job)
	if err != nil {
		outcome.Stage = stage
		outcome.Err = err
		e.notifyFailure(ctx, job, stage, err)
		return outcome
	}
	outcome.Rows = result.NumRows()
	outcome.Columns = result.NumColumns()

	if err := e.notifier.DeliverSuccess(ctx, job.Name, job.Recipients, csvContent); err != nil {
		outcome.Stage = domain.StageDeliver
		outcome.Err = err
		return outcome
	}

	if err := e.registry.SetLastRun(ctx, job.Name, outcome.StartedAt); err != nil {
		// The run itself succeeded; losing the bookkeeping write only
		// affects the last-run display.
		log.Warn().Err(err).Msg("failed to record last run time")
	}
	return outcome
}

// Test runs fetch, transform and format for job and returns the CSV
// that a scheduled run would deliver. Nothing is mailed and the job's
// last-run time is untouched.
func (e *Executor) Test(ctx context.Context, job domain.Job) (string, error) {
	csvContent, _, stage, err := e.pipeline(ctx, job)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	return csvContent, nil
}

// pipeline runs the non-delivery stages and returns the formatted CSV,
// the result dataset, and on failure the stage that failed.
func (e *Executor) pipeline(ctx context.Context, job domain.Job) (string, *dataset.Dataset, domain.Stage, error) {
	input, err := e.fetcher.Fetch(ctx, job.Source)
	if err != nil {
		return "", nil, domain.StageFetch, err
	}

	result, err := e.transformer.Run(ctx, job.Transform, input)
	if err != nil {
		return "", nil, domain.StageTransform, err
	}

	csvContent, err := dataset.FormatCSV(result)
	if err != nil {
		return "", nil, domain.StageFormat, err
	}
	return csvContent, result, "", nil
}

func (e *Executor) notifyFailure(ctx context.Context, job domain.Job, stage domain.Stage, cause error) {
	if err := e.notifier.DeliverFailure(ctx, job.Name, job.Recipients, stage, cause.Error()); err != nil {
		e.log.Error().Str("job", job.Name).Err(err).Msg("failure notification could not be delivered")
	}
}

func (e *Executor) finish(ctx context.Context, job domain.Job, outcome domain.RunOutcome) {
	if e.metrics != nil {
		result := "success"
		if !outcome.Success() {
			result = "failure"
		}
		e.metrics.RunCompleted(string(outcome.Stage), result, outcome.FinishedAt.Sub(outcome.StartedAt))
	}
	if e.analytics != nil {
		if err := e.analytics.RecordRun(ctx, outcome); err != nil {
			e.log.Warn().Str("job", job.Name).Err(err).Msg("analytics write failed")
		}
	}
}
