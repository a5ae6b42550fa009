package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// evaluate runs one evaluator: a guarded inference call parsed into a
// verdict, or the stage fallback when the call is skipped or fails. Either
// way the stage penalties apply and a trace entry is written.
func (p *Pipeline) evaluate(ctx context.Context, st *State, stage Stage, data promptData) StageVerdict {
	ctx, span := tracer.Start(ctx, "pipeline."+stage.Key)
	defer span.End()

	var (
		v     StageVerdict
		entry StageLog
		label = stage.Name
	)

	raw, err := p.infer(ctx, st, stage.Template, data)
	if err == nil {
		verdict, confidence, reasoning := ParseStageResponse(raw)
		v = StageVerdict{Verdict: verdict, Confidence: confidence, Reasoning: reasoning}
		entry = StageLog{
			Path:        PathInference,
			PathReason:  stage.PathReason(st),
			RawResponse: raw,
		}
	} else {
		st.Failures++
		log.Warn().Err(err).
			Int64("entry_id", st.Input.EntryID).
			Str("run_id", st.RunID).
			Str("stage", stage.Key).
			Msg("stage inference failed, using fallback")

		fb := stage.Fallback(st, p.cfg.Thresholds)
		v = fb.Verdict
		label += " (fallback)"
		entry = StageLog{
			Path:       PathFallback,
			PathReason: fmt.Sprintf("Inference failed (%s). %s", clip(err.Error(), 60), fb.Method),
			Details:    fmt.Sprintf("%s Error: %s", fb.Details, clip(err.Error(), 80)),
		}
		span.RecordError(err)
	}

	if stage.Penalize != nil {
		entry.Penalties = stage.Penalize(st, &v)
	}
	v.Confidence = clampConfidence(v.Confidence)

	score := v.Confidence
	entry.Score = &score
	entry.Verdict = v.Verdict
	entry.Summary = fmt.Sprintf("%s: %s (%d%%). %s", label, v.Verdict, v.Confidence, clip(v.Reasoning, 150))
	if entry.Path == PathInference {
		entry.Details = v.Reasoning
	}
	st.Trace.setStage(stage.Key, &entry)
	p.rec.StagePath(stage.Key, entry.Path)

	span.SetAttributes(
		attribute.String("stage.path", entry.Path),
		attribute.String("stage.verdict", string(v.Verdict)),
		attribute.Int("stage.confidence", v.Confidence),
	)
	log.Debug().
		Int64("entry_id", st.Input.EntryID).
		Str("run_id", st.RunID).
		Str("stage", stage.Key).
		Str("path", entry.Path).
		Str("verdict", string(v.Verdict)).
		Int("confidence", v.Confidence).
		Msg("stage evaluated")
	return v
}
