package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/entrybrain/internal/model"
)

const (
	fallbackGuardrailCap  = 75
	copyPasteGuardrailCap = 70
)

type evidence struct {
	Label     string
	Number    int
	Verdict   StageVerdict
	Reasoning string
}

type synthesisData struct {
	Briefing       string
	SubjectKind    string
	Subject        string
	IntentLabel    string
	Hours          float64
	Progress       float64
	Completed      bool
	ContextSummary string
	Evidence       []evidence
	Flags          []string
}

// ApplyGuardrails enforces the rules no inference output may override:
// approve is downgraded to flag when more than one evaluator fell back, or
// when copy-paste was detected. It returns the notes that were applied.
func ApplyGuardrails(out Outcome, failures int, copyPaste bool) (Outcome, []string) {
	var notes []string
	if failures > 1 && out.Decision == model.DecisionApprove {
		out.Decision = model.DecisionFlag
		out.Confidence = min(out.Confidence, fallbackGuardrailCap)
		note := "[Safety: downgraded — multiple stage fallbacks]"
		out.Reasoning += " " + note
		notes = append(notes, note)
	}
	if copyPaste && out.Decision == model.DecisionApprove {
		out.Decision = model.DecisionFlag
		out.Confidence = min(out.Confidence, copyPasteGuardrailCap)
		note := "[Safety: downgraded — copy-paste detected]"
		out.Reasoning += " " + note
		notes = append(notes, note)
	}
	return out, notes
}

// FallbackDecision votes over the evaluator verdicts when synthesis
// inference is unavailable. It never approves.
func FallbackDecision(tv, cv, pv StageVerdict) Outcome {
	vs := []StageVerdict{tv, cv, pv}
	fails, concerns, passes := 0, 0, 0
	sum := 0
	for _, v := range vs {
		switch v.Verdict {
		case VerdictFail:
			fails++
		case VerdictConcern:
			concerns++
		case VerdictPass:
			passes++
		}
		sum += v.Confidence
	}
	avg := float64(sum) / 3

	switch {
	case fails >= 2:
		return Outcome{Decision: model.DecisionPending, Confidence: min(avg, 45)}
	case fails >= 1 || concerns >= 2:
		return Outcome{Decision: model.DecisionFlag, Confidence: min(avg, 70)}
	case passes == 3 && avg >= 75:
		return Outcome{Decision: model.DecisionFlag, Confidence: min(avg, 80)}
	default:
		return Outcome{Decision: model.DecisionFlag, Confidence: min(avg, 65)}
	}
}

func (p *Pipeline) synthesize(ctx context.Context, st *State, s Strategy) {
	ctx, span := tracer.Start(ctx, "pipeline."+StageFinal)
	defer span.End()

	tv := st.Verdicts.Time.OrElse(missingVerdict)
	cv := st.Verdicts.Content.OrElse(missingVerdict)
	pv := st.Verdicts.Progress.OrElse(missingVerdict)

	stages := s.Stages()
	labels := make([]string, len(stages))
	for i, stage := range stages {
		labels[i] = strings.ToUpper(stage.Name)
	}

	flags := synthesisFlags(st)
	data := synthesisData{
		Briefing:       s.Briefing(),
		SubjectKind:    s.SubjectKind(),
		Subject:        st.SubjectLabel(),
		IntentLabel:    st.Input.Intent.Label(),
		Hours:          st.Input.Hours,
		Progress:       st.Input.ProgressPercent,
		Completed:      st.Input.IsCompleted,
		ContextSummary: st.Context.Summary,
		Evidence: []evidence{
			{Label: labels[0], Number: 1, Verdict: tv, Reasoning: clip(tv.Reasoning, 500)},
			{Label: labels[1], Number: 2, Verdict: cv, Reasoning: clip(cv.Reasoning, 500)},
			{Label: labels[2], Number: 3, Verdict: pv, Reasoning: clip(pv.Reasoning, 500)},
		},
		Flags: flags,
	}

	final := &FinalLog{
		Scores:   Scorecard{Time: tv.Confidence, Quality: cv.Confidence, Relevance: pv.Confidence},
		Verdicts: StageVerdicts{Time: tv.Verdict, Content: cv.Verdict, Progress: pv.Verdict},
		Flags:    flags,
	}

	var out Outcome
	raw, err := p.infer(ctx, st, "verdict.gotmpl", data)
	if err == nil {
		decision, confidence, reasoning := ParseDecisionResponse(raw)
		out, final.Guardrails = ApplyGuardrails(Outcome{
			Decision:   decision,
			Confidence: float64(confidence),
			Reasoning:  reasoning,
		}, st.Failures, st.Context.CopyPaste)

		final.Path = PathInference
		final.Summary = fmt.Sprintf("%s at %s%% confidence.", strings.ToUpper(string(out.Decision)), num(out.Confidence))
		final.Reason = out.Reasoning
		final.Details = out.Reasoning
		final.RawResponse = raw
		if st.Failures > 0 {
			final.Penalty = fmt.Sprintf("%d fallback(s)", st.Failures)
		}
		final.PathReason = fmt.Sprintf("Verdict Agent synthesized all stage findings. Time: %s, Content: %s, Progress: %s. Decision: %s (%s%%).",
			tv.Verdict, cv.Verdict, pv.Verdict, strings.ToUpper(string(out.Decision)), num(out.Confidence))
	} else {
		log.Warn().Err(err).
			Int64("entry_id", st.Input.EntryID).
			Str("run_id", st.RunID).
			Str("stage", StageFinal).
			Msg("synthesis inference failed, using vote fallback")
		span.RecordError(err)

		out = FallbackDecision(tv, cv, pv)
		out.Reasoning = fmt.Sprintf("Synthesis inference failed. Stage voting fallback: Time=%s, Content=%s, Progress=%s. Avg confidence: %.0f%%. Never auto-approve on fallback.",
			tv.Verdict, cv.Verdict, pv.Verdict, float64(tv.Confidence+cv.Confidence+pv.Confidence)/3)

		final.Path = PathFallback
		final.Summary = fmt.Sprintf("%s at %.0f%% (synthesis fallback).", strings.ToUpper(string(out.Decision)), out.Confidence)
		final.Reason = out.Reasoning
		final.Penalty = "Synthesis fallback, no auto-approve."
		final.PathReason = fmt.Sprintf("Synthesis inference failed (%s). Stage-voting fallback.", clip(err.Error(), 60))
		final.Details = fmt.Sprintf("Error: %s. Verdicts: [%s %s %s].", clip(err.Error(), 100), tv.Verdict, cv.Verdict, pv.Verdict)
	}

	out.Confidence = round(out.Confidence, 2)
	final.Confidence = out.Confidence
	final.Decision = string(out.Decision)
	st.Outcome = out
	st.Trace.Final = final
	p.rec.StagePath(StageFinal, final.Path)

	log.Info().
		Int64("entry_id", st.Input.EntryID).
		Str("run_id", st.RunID).
		Str("path", final.Path).
		Str("decision", string(out.Decision)).
		Float64("confidence", out.Confidence).
		Int("fallbacks", st.Failures).
		Msg("decision reached")
}

func synthesisFlags(st *State) []string {
	var flags []string
	if st.Context.CopyPaste {
		flags = append(flags, fmt.Sprintf("COPY-PASTE DETECTED (%.0f%% similarity)", st.Context.Similarity*100))
	}
	if !st.Context.Coherent {
		flags = append(flags, "PROGRESS/COMPLETION MISMATCH")
	}
	if st.Failures > 0 {
		flags = append(flags, fmt.Sprintf("%d stage(s) used FALLBACK (inference was unavailable)", st.Failures))
	}
	return flags
}
