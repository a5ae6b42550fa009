package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/entrybrain/internal/model"
	"github.com/metalagman/entrybrain/internal/sanitize"
	"github.com/metalagman/entrybrain/internal/similarity"
)

var difficultyFactors = map[int]float64{1: 0.6, 2: 0.8, 3: 1.0, 4: 1.5, 5: 2.0}

// DifficultyFactor scales benchmark hours by topic difficulty.
func DifficultyFactor(difficulty int) float64 {
	if f, ok := difficultyFactors[difficulty]; ok {
		return f
	}
	return 1.0
}

var blockerCategories = map[string]bool{
	"technical":     true,
	"environmental": true,
	"personal":      true,
	"resource":      true,
}

// ParseBlocker splits "Category: comment". ok is false when the text carries
// no recognized category, in which case comment is the trimmed input.
func ParseBlocker(text string) (category, comment string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	if prefix, rest, found := strings.Cut(text, ":"); found {
		p := strings.ToLower(strings.TrimSpace(prefix))
		if blockerCategories[p] || p == "other" {
			return p, strings.TrimSpace(rest), true
		}
	}
	return "", text, false
}

// BlockerSummary renders the blocker classification for prompts.
func BlockerSummary(blockers string) string {
	if strings.TrimSpace(blockers) == "" {
		return "No blockers reported."
	}
	category, comment, ok := ParseBlocker(blockers)
	switch {
	case ok && category != "other":
		if comment == "" {
			comment = "No details."
		}
		return fmt.Sprintf("Blocker [%s]: %s", titleCase(category), clip(comment, 200))
	case ok:
		if comment == "" {
			comment = blockers
		}
		return "Blocker [Other]: " + clip(comment, 200)
	default:
		return "Blocker: " + clip(blockers, 200)
	}
}

// AdminFeedback derives the "AI too strict / too lenient" signal from past
// overrides. The result is absent when no override disagreed with the AI.
func AdminFeedback(overrides []model.Override) Optional[string] {
	if len(overrides) == 0 {
		return None[string]()
	}
	strict, lenient := 0, 0
	for _, o := range overrides {
		switch {
		case (o.AIDecision == model.DecisionFlag || o.AIDecision == model.DecisionPending || o.AIDecision == model.DecisionReject) &&
			o.Status == model.StatusApproved:
			strict++
		case o.AIDecision == model.DecisionApprove &&
			(o.Status == model.StatusFlagged || o.Status == model.StatusRejected):
			lenient++
		}
	}
	if strict == 0 && lenient == 0 {
		return None[string]()
	}

	msg := fmt.Sprintf("ADMIN FEEDBACK: %d override(s) for this learner. ", len(overrides))
	switch {
	case strict > lenient:
		msg += fmt.Sprintf("AI was overruled %dx (flagged but admin approved). "+
			"The AI may be TOO STRICT for this learner — give benefit of the doubt.", strict)
	case lenient > strict:
		msg += fmt.Sprintf("AI was overruled %dx (approved but admin flagged/rejected). "+
			"The AI may be TOO LENIENT for this learner — be more careful.", lenient)
	default:
		msg += fmt.Sprintf("Mixed overrides (%d too strict, %d too lenient).", strict, lenient)
	}
	return Some(msg)
}

// gatherContext is Stage 0. It reads history only and never fails the run.
func (p *Pipeline) gatherContext(ctx context.Context, st *State) {
	ctx, span := tracer.Start(ctx, "pipeline.context")
	defer span.End()

	in := st.Input
	c := &st.Context

	priors := p.priorEntries(ctx, st).OrElse(nil)
	c.PriorCount = len(priors)

	c.TotalHours = in.Hours
	for _, e := range priors {
		c.TotalHours += e.Hours
	}
	c.TotalHours = round(c.TotalHours, 2)

	c.PriorTexts = make([]string, len(priors))
	for i, e := range priors {
		c.PriorTexts[i] = sanitize.Text(e.Text)
	}

	c.Trajectory = make([]TrajectoryPoint, 0, len(priors)+1)
	for i := len(priors) - 1; i >= 0; i-- {
		e := priors[i]
		c.Trajectory = append(c.Trajectory, TrajectoryPoint{
			Date:     e.Date.Format(model.DateLayout),
			Progress: e.ProgressPercent,
			Hours:    e.Hours,
			Summary:  clip(c.PriorTexts[i], 100),
			Status:   string(e.Status),
		})
	}
	c.Trajectory = append(c.Trajectory, TrajectoryPoint{
		Date:     "current",
		Progress: in.ProgressPercent,
		Hours:    in.Hours,
		Summary:  clip(in.Text, 100),
		Status:   "new",
	})

	c.EstimatedTotal = round(in.BenchmarkHours*DifficultyFactor(in.Difficulty), 1)
	if st.IsProject() {
		c.EstimatedTotal = max(c.EstimatedTotal, p.cfg.ProjectMinEstimateHours)
	}

	window := min(p.cfg.HistoryWindow, similarity.MaxCandidates)
	sim := similarity.Detect(in.Text, c.PriorTexts[:min(window, len(c.PriorTexts))], p.cfg.SimilarityThreshold)
	c.Similarity = round(sim.MaxScore, 3)
	c.CopyPaste = sim.Flagged

	c.Summaries = make([]string, 0, min(p.cfg.SummaryWindow, len(priors)))
	for i, e := range priors {
		if i >= p.cfg.SummaryWindow {
			break
		}
		c.Summaries = append(c.Summaries, fmt.Sprintf("[%s] %sh — \"%s\" (progress: %s%%, status: %s)",
			e.Date.Format(model.DateLayout), num(e.Hours), clip(c.PriorTexts[i], 120),
			num(e.ProgressPercent), e.Status))
	}

	c.Coherent, c.CoherenceNote = coherence(in.IsCompleted, in.ProgressPercent)
	c.BlockerSummary = BlockerSummary(in.Blockers)
	c.Pace = pace(c.PriorCount, c.TotalHours, in.ProgressPercent, c.EstimatedTotal)
	c.Feedback = p.adminFeedback(ctx, st)
	c.Summary = contextSummary(st)

	st.Trace.Context = &StageLog{
		Summary: c.Summary,
		Path:    PathLogic,
		PathReason: fmt.Sprintf("Context gathering is logic-only and aggregates data for the evaluators. "+
			"Gathered %d prior entries, %.1fh total invested, %s, %s.",
			c.PriorCount, c.TotalHours,
			pick(c.CopyPaste, "copy-paste flagged", "no copy-paste"),
			pick(c.Coherent, "coherent progress", "incoherent progress")),
		Details: fmt.Sprintf("Prior entries: %d | Total hours: %.1fh\nProgress: %s%%%s\nEstimated total: ~%.1fh\n%s\nBlockers: %s\nCopy-paste: %s\nCoherence: %s",
			c.PriorCount, c.TotalHours,
			num(in.ProgressPercent), pick(in.IsCompleted, " (Complete)", ""),
			c.EstimatedTotal, c.Pace, c.BlockerSummary,
			pick(c.CopyPaste, fmt.Sprintf("FLAGGED %s%%", num(round(c.Similarity*100, 1))), "Clear"),
			pick(c.Coherent, "OK", c.CoherenceNote)),
	}
	p.rec.StagePath(StageContext, PathLogic)

	log.Debug().
		Int64("entry_id", in.EntryID).
		Str("run_id", st.RunID).
		Str("stage", StageContext).
		Int("prior_entries", c.PriorCount).
		Float64("similarity", c.Similarity).
		Bool("copy_paste", c.CopyPaste).
		Bool("coherent", c.Coherent).
		Msg("context gathered")
}

func (p *Pipeline) priorEntries(ctx context.Context, st *State) Optional[[]model.PriorEntry] {
	if st.Input.Subject.IsZero() {
		return None[[]model.PriorEntry]()
	}
	priors, err := p.history.SubjectEntries(ctx, st.Input.UserID, st.Input.Subject, st.Input.EntryID)
	if err != nil {
		log.Debug().Err(err).Int64("entry_id", st.Input.EntryID).Msg("prior entries lookup failed")
		return None[[]model.PriorEntry]()
	}
	return Some(priors)
}

func (p *Pipeline) adminFeedback(ctx context.Context, st *State) Optional[string] {
	overrides, err := p.history.RecentOverrides(ctx, st.Input.UserID, p.cfg.OverrideWindow)
	if err != nil {
		log.Debug().Err(err).Int64("entry_id", st.Input.EntryID).Msg("admin feedback lookup failed")
		return None[string]()
	}
	return AdminFeedback(overrides)
}

// wisdom returns admin corrections for similarly named topics, rendered for
// the content prompt.
func (p *Pipeline) wisdom(ctx context.Context, st *State) Optional[[]string] {
	name := st.Input.TopicName
	if name == "" || name == NoTopic || p.cfg.WisdomLimit <= 0 {
		return None[[]string]()
	}
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(w)) > 2 {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return None[[]string]()
	}
	rows, err := p.history.Wisdom(ctx, keywords, p.cfg.WisdomLimit)
	if err != nil {
		log.Debug().Err(err).Int64("entry_id", st.Input.EntryID).Msg("admin correction lookup failed")
		return None[[]string]()
	}
	if len(rows) == 0 {
		return None[[]string]()
	}
	lines := make([]string, len(rows))
	for i, w := range rows {
		lines[i] = fmt.Sprintf("'%s': %s (AI:%s -> Admin:%s)",
			sanitize.Text(w.TopicName), sanitize.Text(w.Reason), w.AIOriginalDecision, w.AdminCorrectedDecision)
	}
	return Some(lines)
}

func coherence(completed bool, progress float64) (bool, string) {
	switch {
	case completed && progress < 100:
		return false, "Marked complete but progress < 100%."
	case !completed && progress >= 100:
		return false, "Progress at 100% but not marked complete."
	}
	return true, ""
}

func pace(priorCount int, total, progress, estimated float64) string {
	if priorCount == 0 || total <= 0 {
		return "First entry — no pace baseline yet."
	}
	perEntry := total / float64(priorCount+1)
	perHour := progress / total
	var remaining float64
	if perHour > 0 {
		remaining = max(0, (100-progress)/perHour)
	} else {
		remaining = max(0, estimated-total)
	}
	return fmt.Sprintf("Pace: %.1fh/entry avg, %.1f%%/hour, ~%.1fh remaining.", perEntry, perHour, remaining)
}

func contextSummary(st *State) string {
	in := st.Input
	c := st.Context
	var parts []string
	if st.IsProject() {
		parts = append(parts, fmt.Sprintf("PROJECT '%s' — Entry #%d, %.1fh invested, %s%% progress.",
			st.SubjectLabel(), c.PriorCount+1, c.TotalHours, num(in.ProgressPercent)))
		if in.ProjectDescription != "" {
			parts = append(parts, fmt.Sprintf("Description: \"%s\"", clip(in.ProjectDescription, 200)))
		}
	} else {
		parts = append(parts, fmt.Sprintf("TOPIC '%s' (difficulty %d/5) — Entry #%d, %.1fh of ~%.1fh estimated, %s%% progress.",
			in.TopicName, in.Difficulty, c.PriorCount+1, c.TotalHours, c.EstimatedTotal, num(in.ProgressPercent)))
	}
	parts = append(parts, c.Pace, c.BlockerSummary)
	if c.CopyPaste {
		parts = append(parts, fmt.Sprintf("WARNING: COPY-PASTE %.0f%% similarity with previous entry.", c.Similarity*100))
	}
	if !c.Coherent {
		parts = append(parts, "WARNING: "+c.CoherenceNote)
	}
	if fb, ok := c.Feedback.Get(); ok {
		parts = append(parts, fb)
	}
	return strings.Join(parts, " ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// num formats a float without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
