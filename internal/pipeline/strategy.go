package pipeline

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/model"
)

//go:embed prompts/*.gotmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"num": num,
	"f1":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
}).ParseFS(promptFS, "prompts/*.gotmpl"))

// Fallback is the deterministic judgement used when inference is skipped or fails.
type Fallback struct {
	Verdict StageVerdict
	// Method names the heuristic for the trace.
	Method  string
	Details string
}

// Stage describes one evaluator for one pipeline variant.
type Stage struct {
	Key      string
	Name     string
	Template string
	// PathReason explains what the inference path assessed.
	PathReason func(st *State) string
	Fallback   func(st *State, th config.Thresholds) Fallback
	// Penalize adjusts a verdict on either path and returns the notes applied.
	Penalize func(st *State, v *StageVerdict) []string
}

// Strategy supplies the intent-specific parts of the pipeline: prompt
// content and fallback heuristics for the three evaluators.
type Strategy interface {
	Intent() model.Intent
	Briefing() string
	Stages() []Stage
	// SubjectKind is "Topic" or "Project".
	SubjectKind() string
}

// StrategyFor returns the variant that judges entries of intent i.
func StrategyFor(i model.Intent) Strategy {
	if i.Normalize() == model.IntentProject {
		return projectStrategy{}
	}
	return learningStrategy{}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// promptData is what the evaluator templates see.
type promptData struct {
	Briefing           string
	IntentLabel        string
	IntentPhrase       string
	Subject            string
	ProjectDescription string
	Difficulty         int
	Experience         float64
	Benchmark          float64
	Hours              float64
	Progress           float64
	Completed          bool
	TotalHours         float64
	Estimated          float64
	EstimateRatioPct   float64
	EntryNumber        int
	VelocityAvg        float64
	VelocityCount      int
	Blockers           string
	PriorWork          []string
	PriorEntries       []string
	Timeline           []string
	Text               string
	CopyPaste          bool
	CopyPastePct       float64
	Position           string
	Wisdom             []string
}

func newPromptData(st *State, s Strategy, wisdom Optional[[]string]) promptData {
	in := st.Input
	c := st.Context

	desc := in.ProjectDescription
	if desc == "" {
		desc = "No description"
	}

	d := promptData{
		Briefing:           s.Briefing(),
		IntentLabel:        in.Intent.Label(),
		IntentPhrase:       pick(st.IsProject(), "sbu tasks", "lnd tasks"),
		Subject:            st.SubjectLabel(),
		ProjectDescription: clip(desc, 300),
		Difficulty:         in.Difficulty,
		Experience:         in.Experience,
		Benchmark:          in.BenchmarkHours,
		Hours:              in.Hours,
		Progress:           in.ProgressPercent,
		Completed:          in.IsCompleted,
		TotalHours:         c.TotalHours,
		Estimated:          c.EstimatedTotal,
		EntryNumber:        c.PriorCount + 1,
		VelocityAvg:        st.Velocity.AvgHours,
		VelocityCount:      st.Velocity.Count,
		Blockers:           c.BlockerSummary,
		PriorWork:          c.Summaries[:min(3, len(c.Summaries))],
		PriorEntries:       c.Summaries,
		Text:               in.Text,
		CopyPaste:          c.CopyPaste,
		CopyPastePct:       round(c.Similarity*100, 0),
		Position:           entryPosition(c.PriorCount, in.IsCompleted),
		Wisdom:             wisdom.OrElse(nil),
	}
	if c.EstimatedTotal > 0 {
		d.EstimateRatioPct = round(c.TotalHours/c.EstimatedTotal*100, 0)
	}
	if len(c.Trajectory) > 1 {
		from := max(0, len(c.Trajectory)-6)
		for _, t := range c.Trajectory[from:] {
			d.Timeline = append(d.Timeline, fmt.Sprintf("  %s: %s%% (+%sh) — %s", t.Date, num(t.Progress), num(t.Hours), clip(t.Summary, 60)))
		}
	}
	return d
}

func entryPosition(priorCount int, completed bool) string {
	switch {
	case priorCount == 0:
		return "FIRST entry on this subject. Be lenient, the learner is just starting."
	case completed:
		return fmt.Sprintf("FINAL entry (marked complete). %d prior entries exist. Verify completion is justified.", priorCount)
	default:
		return fmt.Sprintf("MIDDLE entry (#%d). Compare with prior work for new content.", priorCount+1)
	}
}

func positionShort(priorCount int, completed bool) string {
	switch {
	case priorCount == 0:
		return "first"
	case completed:
		return "final"
	default:
		return fmt.Sprintf("#%d", priorCount+1)
	}
}

// copyPastePenalty lowers confidence proportionally to the similarity score.
func copyPastePenalty(st *State, v *StageVerdict) []string {
	if !st.Context.CopyPaste || v.Confidence <= 40 {
		return nil
	}
	penalty := min(25, int(round(st.Context.Similarity*30, 0)))
	v.Confidence = max(20, v.Confidence-penalty)
	note := fmt.Sprintf("Copy-paste penalty: -%d%%", penalty)
	v.Reasoning += " [" + note + "]"
	return []string{note}
}

// coherencePenalty caps a verdict when progress and completion disagree.
func coherencePenalty(st *State, v *StageVerdict) []string {
	if st.Context.Coherent {
		return nil
	}
	v.Confidence = max(20, v.Confidence-20)
	if v.Verdict == VerdictPass {
		v.Verdict = VerdictConcern
	}
	v.Reasoning += " [Progress coherence issue detected]"
	return []string{"Progress coherence penalty: -20%"}
}
