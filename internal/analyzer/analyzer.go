// Package analyzer runs the validation pipeline for one entry and persists
// the outcome, mapping every failure mode to a terminal entry state.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/inference"
	"github.com/metalagman/entrybrain/internal/metrics"
	"github.com/metalagman/entrybrain/internal/model"
	"github.com/metalagman/entrybrain/internal/pipeline"
)

// ErrRetriesExhausted marks a run abandoned after the retry budget ran out.
var ErrRetriesExhausted = errors.New("analysis retries exhausted")

const (
	timeoutNote   = "Analysis timed out. Flagged for manual review."
	exhaustedNote = "Max retries exceeded. Needs manual review."

	// writeTimeout bounds failure writes made after the run context expired.
	writeTimeout = 5 * time.Second
)

var tracer = otel.Tracer("entrybrain.analyzer")

// Repository is the store the analyzer reads entries from and writes
// outcomes to.
type Repository interface {
	pipeline.History
	// Entry returns model.ErrNotFound when the entry does not exist.
	Entry(ctx context.Context, id int64) (model.Entry, error)
	Velocity(ctx context.Context, userID int64, subject model.Subject, excludeID int64) (float64, int, error)
	// SaveAnalysis and MarkFailure report false when admin_override blocked the write.
	SaveAnalysis(ctx context.Context, id int64, a model.Analysis) (bool, error)
	MarkFailure(ctx context.Context, id int64, f model.Failure) (bool, error)
	SetAIStatus(ctx context.Context, id int64, status model.AIStatus) error
}

// Analyzer is the controller around one pipeline run.
type Analyzer struct {
	repo             Repository
	pipe             *pipeline.Pipeline
	defaultBenchmark float64
	rec              *metrics.Recorder
	now              func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source for analyzed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithMetrics records run outcomes on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(a *Analyzer) { a.rec = rec }
}

// New constructs an analyzer.
func New(repo Repository, pipe *pipeline.Pipeline, cfg config.PipelineConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		repo:             repo,
		pipe:             pipe,
		defaultBenchmark: cfg.DefaultBenchmarkHours,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze validates entry id and stores the decision. It returns a short
// status line for the caller. A non-nil error means the run should be
// retried; every other outcome has already been written.
func (a *Analyzer) Analyze(ctx context.Context, id int64) (string, error) {
	ctx, span := tracer.Start(ctx, "analyzer.Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int64("entry.id", id))

	e, err := a.repo.Entry(ctx, id)
	if err != nil {
		return a.fail(ctx, id, err)
	}
	if e.AdminOverride {
		log.Info().Int64("entry_id", id).Msg("entry has admin override, skipping")
		a.rec.Outcome("skipped")
		return fmt.Sprintf("Entry %d skipped (admin override).", id), nil
	}

	avg, count, err := a.repo.Velocity(ctx, e.UserID, e.Subject(), e.ID)
	if err != nil {
		return a.fail(ctx, id, fmt.Errorf("read velocity: %w", err))
	}

	start := time.Now()
	st := a.pipe.Start(pipeline.InputFromEntry(e, a.defaultBenchmark), pipeline.Velocity{AvgHours: avg, Count: count})
	a.pipe.Run(ctx, st)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return a.timeout(ctx, id), nil
	}
	if err := ctx.Err(); err != nil {
		return a.fail(ctx, id, err)
	}

	fresh, err := a.repo.Entry(ctx, id)
	if err != nil {
		return a.fail(ctx, id, err)
	}
	if fresh.AdminOverride {
		return a.overridden(id), nil
	}

	raw, err := st.Trace.Marshal()
	if err != nil {
		return a.fail(ctx, id, fmt.Errorf("encode trace: %w", err))
	}
	applied, err := a.repo.SaveAnalysis(ctx, id, model.Analysis{
		Decision:   st.Outcome.Decision,
		Confidence: st.Outcome.Confidence,
		Trace:      raw,
		AnalyzedAt: a.now(),
		Status:     model.StatusFor(st.Outcome.Decision, fresh.Status),
	})
	if err != nil {
		return a.fail(ctx, id, err)
	}
	if !applied {
		return a.overridden(id), nil
	}

	a.rec.Outcome("analyzed")
	span.SetAttributes(
		attribute.String("entry.decision", string(st.Outcome.Decision)),
		attribute.Float64("entry.confidence", st.Outcome.Confidence),
	)
	confidence := strconv.FormatFloat(st.Outcome.Confidence, 'f', -1, 64)
	log.Info().
		Int64("entry_id", id).
		Str("run_id", st.RunID).
		Str("decision", string(st.Outcome.Decision)).
		Float64("confidence", st.Outcome.Confidence).
		Dur("duration", time.Since(start)).
		Msg("entry analyzed")
	return fmt.Sprintf("Entry %d: %s (%s%%)", id, st.Outcome.Decision, confidence), nil
}

// Exhausted records that entry id could not be analyzed within the retry
// budget. cause is the last error returned by Analyze.
func (a *Analyzer) Exhausted(ctx context.Context, id int64, cause error) string {
	err := fmt.Errorf("%w: %w", ErrRetriesExhausted, cause)
	log.Error().Err(err).Int64("entry_id", id).Msg("max retries exceeded")

	decision := model.DecisionPending
	a.markFailure(ctx, id, model.Failure{
		AIStatus: model.AIStatusError,
		Decision: &decision,
		Status:   model.StatusPending,
		Trace:    pipeline.ErrorTrace(exhaustedNote),
	})
	a.rec.Outcome("exhausted")
	return fmt.Sprintf("Entry %d: Max retries exceeded.", id)
}

func (a *Analyzer) overridden(id int64) string {
	log.Info().Int64("entry_id", id).Msg("entry overridden by admin during analysis, discarding result")
	a.rec.Outcome("skipped")
	return fmt.Sprintf("Entry %d overridden by admin during analysis.", id)
}

func (a *Analyzer) timeout(ctx context.Context, id int64) string {
	log.Warn().Int64("entry_id", id).Msg("soft time limit exceeded")

	decision := model.DecisionFlag
	confidence := float64(model.TimeoutConfidence)
	a.markFailure(ctx, id, model.Failure{
		AIStatus:   model.AIStatusTimeout,
		Decision:   &decision,
		Confidence: &confidence,
		Status:     model.StatusFlagged,
		Trace:      pipeline.ErrorTrace(timeoutNote),
	})
	a.rec.Outcome("timeout")
	return fmt.Sprintf("Entry %d: Timed out, flagged for review.", id)
}

// fail maps an error that escaped the pipeline to its terminal state.
func (a *Analyzer) fail(ctx context.Context, id int64, err error) (string, error) {
	span := trace.SpanFromContext(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		log.Error().Int64("entry_id", id).Msg("entry not found")
		a.rec.Outcome("missing")
		return fmt.Sprintf("Entry %d not found.", id), nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return a.timeout(ctx, id), nil
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		// The entry stays pending so the next worker picks it up.
		log.Info().Int64("entry_id", id).Msg("analysis cancelled")
		a.rec.Outcome("cancelled")
		return "", fmt.Errorf("analyze entry %d: %w", id, err)
	case errors.Is(err, inference.ErrUnavailable):
		log.Error().Err(err).Int64("entry_id", id).Msg("inference backend unavailable")
		span.SetStatus(codes.Error, "inference backend unavailable")
		a.markFailure(ctx, id, model.Failure{
			AIStatus: model.AIStatusError,
			Status:   model.StatusPending,
			Trace:    pipeline.ErrorTrace("Inference backend unavailable: " + clip(err.Error(), 200)),
		})
		a.rec.Outcome("unavailable")
		return fmt.Sprintf("Entry %d: inference backend unavailable.", id), nil
	}

	log.Error().Err(err).Int64("entry_id", id).Msg("analysis failed")
	span.RecordError(err)
	span.SetStatus(codes.Error, "analysis failed")
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if serr := a.repo.SetAIStatus(wctx, id, model.AIStatusError); serr != nil {
		log.Warn().Err(serr).Int64("entry_id", id).Msg("mark entry as error")
	}
	a.rec.Outcome("error")
	return "", fmt.Errorf("analyze entry %d: %w", id, err)
}

// markFailure writes f on a context detached from the run, which may
// already be past its deadline. Write errors are logged only.
func (a *Analyzer) markFailure(ctx context.Context, id int64, f model.Failure) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	f.AnalyzedAt = a.now()
	applied, err := a.repo.MarkFailure(wctx, id, f)
	switch {
	case err != nil:
		log.Warn().Err(err).Int64("entry_id", id).Str("ai_status", string(f.AIStatus)).Msg("record analysis failure")
	case !applied:
		log.Info().Int64("entry_id", id).Msg("failure not recorded, entry is overridden or gone")
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
