package pipeline

import (
	"fmt"
	"strings"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/model"
)

const projectBriefing = `You are one stage of a five-stage pipeline that validates project work entries.
Employees log daily project and debugging work in this system.

Pipeline stages:
  Stage 0 - Context Gatherer: collects all project history and its description (no inference)
  Stage 1 - Time Reasoner: judges whether claimed hours are reasonable for the project work and blockers
  Stage 2 - Work Validator: judges whether the description shows real incremental project progress
  Stage 3 - Scope Tracker: checks project completion %, pace and remaining work
  Stage 4 - Verdict Agent: combines all findings into a final APPROVE/FLAG/PENDING

Projects are tracked by name and description (set on the first entry). SBU Tasks are logged
until the project is marked complete. Each entry describes what was done that session.
Learners enter hours (0-12h, 9h is a full office day), a description, progress %, completion and blockers.

You MUST respond in this EXACT format:
Reasoning: <your detailed chain-of-thought analysis, 3-5 sentences>
Verdict: <PASS or CONCERN or FAIL>
Confidence: <0-100>
`

type projectStrategy struct{}

func (projectStrategy) Intent() model.Intent { return model.IntentProject }
func (projectStrategy) Briefing() string     { return projectBriefing }
func (projectStrategy) SubjectKind() string  { return "Project" }

func (projectStrategy) Stages() []Stage {
	return []Stage{
		{
			Key:      StageTime,
			Name:     "Time Reasoner",
			Template: "project_time.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference assessed %sh for project '%s' (%.1fh invested, %s%% progress). Blockers factored in: %s",
					num(st.Input.Hours), st.SubjectLabel(), st.Context.TotalHours,
					num(st.Input.ProgressPercent), clip(st.Context.BlockerSummary, 80))
			},
			Fallback: projectTimeFallback,
		},
		{
			Key:      StageContent,
			Name:     "Work Validator",
			Template: "project_work.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference validated work for project '%s': project match, real work, incremental progress.",
					st.SubjectLabel())
			},
			Fallback: projectWorkFallback,
			Penalize: copyPastePenalty,
		},
		{
			Key:      StageProgress,
			Name:     "Scope Tracker",
			Template: "project_scope.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference tracked project scope: %s%% with %.1fh invested. %s",
					num(st.Input.ProgressPercent), st.Context.TotalHours,
					pick(st.Input.IsCompleted, "Completion evaluated.", "Ongoing progress assessed."))
			},
			Fallback: projectScopeFallback,
			Penalize: coherencePenalty,
		},
	}
}

func projectTimeFallback(st *State, th config.Thresholds) Fallback {
	hours := st.Input.Hours

	v := StageVerdict{Verdict: VerdictConcern, Confidence: 40}
	switch {
	case hours <= th.ProjectTimePassHours:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 70}
	case hours <= th.ProjectTimeConcernHours:
		v = StageVerdict{Verdict: VerdictConcern, Confidence: 50}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %sh project work.", num(hours))
	return Fallback{
		Verdict: v,
		Method:  "Absolute hours fallback.",
		Details: fmt.Sprintf("%sh claimed.", num(hours)),
	}
}

func projectWorkFallback(st *State, th config.Thresholds) Fallback {
	words := len(strings.Fields(st.Input.Text))
	terms := countMarkers(st.Input.Text)

	v := StageVerdict{Verdict: VerdictFail, Confidence: 25}
	switch {
	case words >= th.ContentPassWords && terms >= th.ContentPassTerms:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 60}
	case words >= th.ContentConcernWords:
		v = StageVerdict{Verdict: VerdictConcern, Confidence: 40}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %d words, %d tech terms.", words, terms)
	return Fallback{
		Verdict: v,
		Method:  "Word count fallback.",
		Details: fmt.Sprintf("Words: %d, tech: %d.", words, terms),
	}
}

func projectScopeFallback(st *State, th config.Thresholds) Fallback {
	progress := st.Input.ProgressPercent
	done := st.Input.IsCompleted
	invested := st.Context.TotalHours

	v := StageVerdict{Verdict: VerdictConcern, Confidence: 40}
	switch {
	case done && invested >= th.ScopeStrongHours && progress >= th.ScopeStrongProgress:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 70}
	case done && progress >= th.ScopeCloseProgress:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 60}
	case done && invested < th.ScopeMinimalHours:
		v = StageVerdict{Verdict: VerdictFail, Confidence: 25}
	case progress > 0:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 55}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %s%% at %.1fh.", num(progress), invested)
	return Fallback{
		Verdict: v,
		Method:  "Scope fallback.",
		Details: fmt.Sprintf("Progress: %s%%, invested: %.1fh.", num(progress), invested),
	}
}
