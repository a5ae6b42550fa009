// Package pipeline implements the multi-stage validation of work entries:
// context aggregation, three evaluators and the final synthesis.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/inference"
	"github.com/metalagman/entrybrain/internal/metrics"
	"github.com/metalagman/entrybrain/internal/model"
)

// ErrGuardExceeded is returned instead of issuing an inference call once the
// run has used up its guard budget.
var ErrGuardExceeded = errors.New("pipeline guard exceeded")

var tracer = otel.Tracer("entrybrain.pipeline")

// History is the read side of the store consumed by Stage 0.
type History interface {
	// SubjectEntries lists the user's other active entries on subject, newest first.
	SubjectEntries(ctx context.Context, userID int64, subject model.Subject, excludeID int64) ([]model.PriorEntry, error)
	// RecentOverrides lists the user's newest admin-overridden, analyzed entries.
	RecentOverrides(ctx context.Context, userID int64, limit int) ([]model.Override, error)
	// Wisdom lists the newest admin corrections whose topic name contains any keyword.
	Wisdom(ctx context.Context, keywords []string, limit int) ([]model.Wisdom, error)
}

// Pipeline runs the five stages for one entry at a time. It holds no per-run
// state and is safe for concurrent use.
type Pipeline struct {
	completer   inference.Completer
	history     History
	cfg         config.PipelineConfig
	callTimeout time.Duration
	rec         *metrics.Recorder
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used for guard checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics records stage paths and decisions on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Pipeline) { p.rec = rec }
}

// New constructs a pipeline.
func New(c inference.Completer, h History, cfg config.PipelineConfig, callTimeout time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer:   c,
		history:     h,
		cfg:         cfg,
		callTimeout: callTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start creates the state for one run and records its start time.
func (p *Pipeline) Start(in Input, v Velocity) *State {
	return NewState(uuid.NewString(), in, v, p.now())
}

// Run executes Context, Time, Content, Progress and Verdict in order. Stage
// failures degrade to fallbacks, so Run itself cannot fail.
func (p *Pipeline) Run(ctx context.Context, st *State) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("entry.id", st.Input.EntryID),
		attribute.String("entry.intent", string(st.Input.Intent)),
		attribute.String("run.id", st.RunID),
	)

	strategy := StrategyFor(st.Input.Intent)
	log.Info().
		Int64("entry_id", st.Input.EntryID).
		Str("run_id", st.RunID).
		Str("intent", string(strategy.Intent())).
		Msg("running pipeline")

	p.gatherContext(ctx, st)

	data := newPromptData(st, strategy, p.wisdom(ctx, st))
	for _, stage := range strategy.Stages() {
		v := p.evaluate(ctx, st, stage, data)
		switch stage.Key {
		case StageTime:
			st.Verdicts.Time = Some(v)
		case StageContent:
			st.Verdicts.Content = Some(v)
		case StageProgress:
			st.Verdicts.Progress = Some(v)
		}
	}

	p.synthesize(ctx, st, strategy)
	p.rec.Decision(string(st.Input.Intent), string(st.Outcome.Decision))

	span.SetAttributes(
		attribute.String("pipeline.decision", string(st.Outcome.Decision)),
		attribute.Int("pipeline.fallbacks", st.Failures),
	)
}

func (p *Pipeline) guardExceeded(st *State) bool {
	return p.now().Sub(st.Started) > p.cfg.GuardBudget
}

// infer issues one inference call unless the guard has tripped.
func (p *Pipeline) infer(ctx context.Context, st *State, tmpl string, data any) (string, error) {
	if p.guardExceeded(st) {
		return "", ErrGuardExceeded
	}
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	return p.completer.Complete(ctx, prompt, p.callTimeout)
}
