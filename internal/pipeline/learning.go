package pipeline

import (
	"fmt"
	"strings"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/model"
)

const learningBriefing = `You are one stage of a five-stage pipeline that validates learning journal entries.
Employees log daily learning activities in this system.

Pipeline stages:
  Stage 0 - Context Gatherer: collects all learner history for this topic (no inference)
  Stage 1 - Time Reasoner: judges whether claimed hours are reasonable given context and blockers
  Stage 2 - Content Validator: judges whether the description shows genuine learning for the topic
  Stage 3 - Progress Analyzer: judges whether claimed progress and completion make sense
  Stage 4 - Verdict Agent: combines all findings into a final APPROVE/FLAG/PENDING

Topics are hierarchical (e.g. Frontend > React > React Hooks). L&D Tasks track depth-wise
progress per topic. Learners enter hours (0-12h, 9h is a full office day), a description,
progress %, completion and blockers.

You MUST respond in this EXACT format:
Reasoning: <your detailed chain-of-thought analysis, 3-5 sentences>
Verdict: <PASS or CONCERN or FAIL>
Confidence: <0-100>
`

type learningStrategy struct{}

func (learningStrategy) Intent() model.Intent { return model.IntentLearning }
func (learningStrategy) Briefing() string     { return learningBriefing }
func (learningStrategy) SubjectKind() string  { return "Topic" }

func (learningStrategy) Stages() []Stage {
	return []Stage{
		{
			Key:      StageTime,
			Name:     "Time Reasoner",
			Template: "learning_time.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference assessed %sh for '%s' (difficulty %d/5, %.1fh invested, %s%% progress). Blockers factored in: %s",
					num(st.Input.Hours), st.Input.TopicName, st.Input.Difficulty, st.Context.TotalHours,
					num(st.Input.ProgressPercent), clip(st.Context.BlockerSummary, 80))
			},
			Fallback: learningTimeFallback,
		},
		{
			Key:      StageContent,
			Name:     "Content Validator",
			Template: "learning_content.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference validated content for '%s': topic match, genuine learning, depth vs %sh, entry position %s.",
					st.Input.TopicName, num(st.Input.Hours), positionShort(st.Context.PriorCount, st.Input.IsCompleted))
			},
			Fallback: learningContentFallback,
			Penalize: copyPastePenalty,
		},
		{
			Key:      StageProgress,
			Name:     "Progress Analyzer",
			Template: "learning_progress.gotmpl",
			PathReason: func(st *State) string {
				return fmt.Sprintf("Inference analyzed progress: %s%% with %.1fh invested vs ~%.1fh estimated. %s",
					num(st.Input.ProgressPercent), st.Context.TotalHours, st.Context.EstimatedTotal,
					pick(st.Input.IsCompleted, "Completion claim evaluated.", "Ongoing progress assessed."))
			},
			Fallback: learningProgressFallback,
			Penalize: coherencePenalty,
		},
	}
}

func learningTimeFallback(st *State, th config.Thresholds) Fallback {
	hours := st.Input.Hours
	expected := st.Input.BenchmarkHours * DifficultyFactor(st.Input.Difficulty)

	v := StageVerdict{Verdict: VerdictFail, Confidence: 30}
	switch {
	case hours <= expected*th.TimePassMultiplier:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 70}
	case hours <= expected*th.TimeConcernMultiplier:
		v = StageVerdict{Verdict: VerdictConcern, Confidence: 50}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %sh vs expected ~%.1fh.", num(hours), expected)
	return Fallback{
		Verdict: v,
		Method:  "Benchmark ratio fallback.",
		Details: fmt.Sprintf("Expected ~%.1fh, claimed %sh.", expected, num(hours)),
	}
}

func learningContentFallback(st *State, th config.Thresholds) Fallback {
	words := len(strings.Fields(st.Input.Text))
	terms := countMarkers(st.Input.Text)

	v := StageVerdict{Verdict: VerdictFail, Confidence: 25}
	switch {
	case words >= th.ContentPassWords && terms >= th.ContentPassTerms:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 65}
	case words >= th.ContentConcernWords && terms >= th.ContentConcernTerms:
		v = StageVerdict{Verdict: VerdictConcern, Confidence: 45}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %d words, %d tech terms.", words, terms)
	return Fallback{
		Verdict: v,
		Method:  "Word count and tech marker fallback.",
		Details: fmt.Sprintf("Words: %d, tech markers: %d.", words, terms),
	}
}

func learningProgressFallback(st *State, th config.Thresholds) Fallback {
	progress := st.Input.ProgressPercent
	done := st.Input.IsCompleted
	invested := st.Context.TotalHours
	estimated := st.Context.EstimatedTotal

	ratio := 0.0
	if estimated > 0 {
		ratio = invested / estimated
	}

	v := StageVerdict{Verdict: VerdictConcern, Confidence: 45}
	switch {
	case done && invested < estimated*th.ProgressFailRatio:
		v = StageVerdict{Verdict: VerdictFail, Confidence: 25}
	case done && ratio >= th.ProgressStrongRatio:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 75}
	case done && invested >= estimated*th.ProgressPartialRatio:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 65}
	case progress > 0 && invested > 0:
		v = StageVerdict{Verdict: VerdictPass, Confidence: 60}
	}
	v.Reasoning = fmt.Sprintf("Fallback: %s%% at %.1fh of ~%.1fh (%.0f%% of estimate).",
		num(progress), invested, estimated, ratio*100)
	return Fallback{
		Verdict: v,
		Method:  "Ratio-based fallback.",
		Details: fmt.Sprintf("Progress: %s%%, invested: %.1fh, estimated: %.1fh.", num(progress), invested, estimated),
	}
}
