package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/metalagman/entrybrain/internal/model"
)

const (
	stageReasoningLimit     = 1000
	synthesisReasoningLimit = 1200
)

var (
	stageLabelRe     = regexp.MustCompile(`(?i)(?:Reasoning|Analysis|Assessment|Chain[- ]of[- ]Thought):`)
	synthesisLabelRe = regexp.MustCompile(`(?i)(?:Reasoning|Analysis|Synthesis):`)
	stageStopRe      = regexp.MustCompile(`(?i)\n\s*(?:Verdict|Decision|Final|Confidence)[:\s]`)
	synthesisStopRe  = regexp.MustCompile(`(?i)\n\s*(?:Decision|Verdict|Final|Confidence)[:\s]`)
	verdictMarkRe    = regexp.MustCompile(`(?i)(?:Verdict|Decision)[:\s]`)
	decisionMarkRe   = regexp.MustCompile(`(?i)(?:Decision|Verdict)[:\s]`)
	stageVerdictRe   = regexp.MustCompile(`(?i)(?:Verdict|Decision):\s*(PASS|CONCERN|FAIL|APPROVE|FLAG|PENDING)`)
	decisionRe       = regexp.MustCompile(`(?i)(?:Decision|Verdict|Final):\s*(APPROVE|FLAG|PENDING|PASS|CONCERN|FAIL)`)
	confidenceRe     = regexp.MustCompile(`(?i)Confidence:\s*(\d+)`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

var stageDefaultConfidence = map[Verdict]int{
	VerdictPass:    82,
	VerdictConcern: 55,
	VerdictFail:    30,
}

var decisionDefaultConfidence = map[model.Decision]int{
	model.DecisionApprove: 85,
	model.DecisionFlag:    65,
	model.DecisionPending: 40,
}

// ParseStageResponse extracts verdict, confidence and reasoning from an
// evaluator response of the form
//
//	Reasoning: ...
//	Verdict: PASS|CONCERN|FAIL
//	Confidence: 0-100
//
// Malformed text never fails; missing parts fall back to defaults.
func ParseStageResponse(text string) (Verdict, int, string) {
	if strings.TrimSpace(text) == "" {
		return VerdictConcern, 50, ""
	}

	reasoning := extractReasoning(text, stageLabelRe, stageStopRe, verdictMarkRe, stageReasoningLimit)

	verdict := VerdictConcern
	if m := stageVerdictRe.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(m[1]) {
		case "PASS", "APPROVE":
			verdict = VerdictPass
		case "CONCERN", "FLAG":
			verdict = VerdictConcern
		default:
			verdict = VerdictFail
		}
	}

	confidence, ok := extractConfidence(text)
	if !ok {
		confidence = stageDefaultConfidence[verdict]
	}
	return verdict, confidence, reasoning
}

// ParseDecisionResponse is the synthesis counterpart of ParseStageResponse.
func ParseDecisionResponse(text string) (model.Decision, int, string) {
	if strings.TrimSpace(text) == "" {
		return model.DecisionPending, 50, ""
	}

	reasoning := extractReasoning(text, synthesisLabelRe, synthesisStopRe, decisionMarkRe, synthesisReasoningLimit)

	decision := model.DecisionPending
	if m := decisionRe.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(m[1]) {
		case "APPROVE", "PASS":
			decision = model.DecisionApprove
		case "FLAG", "CONCERN":
			decision = model.DecisionFlag
		default:
			decision = model.DecisionPending
		}
	}

	confidence, ok := extractConfidence(text)
	if !ok {
		confidence = decisionDefaultConfidence[decision]
	}
	return decision, confidence, reasoning
}

// extractReasoning finds the first labeled section with content after its
// colon and ends it at the next verdict/confidence line. Without a label it
// keeps everything before the first verdict-like marker, then the whole text.
func extractReasoning(text string, label, stop, mark *regexp.Regexp, limit int) string {
	reasoning, found := labeledSection(text, label, stop)
	if !found {
		if loc := mark.FindStringIndex(text); loc != nil {
			reasoning = text[:loc[0]]
		} else {
			reasoning = text
		}
	}
	reasoning = strings.TrimSpace(blankRunRe.ReplaceAllString(strings.TrimSpace(reasoning), "\n\n"))
	return truncateRunes(reasoning, limit)
}

func labeledSection(text string, label, stop *regexp.Regexp) (string, bool) {
	for _, loc := range label.FindAllStringIndex(text, -1) {
		start := loc[1]
		if start >= len(text) {
			continue
		}
		for start < len(text)-1 && isSpace(text[start]) {
			start++
		}
		// the section holds at least one character before a stop marker
		body := text[start:]
		if idx := stop.FindStringIndex(body[1:]); idx != nil {
			return body[:1+idx[0]], true
		}
		return body, true
	}
	return "", false
}

func extractConfidence(text string) (int, bool) {
	m := confidenceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		// digits only, so the failure is overflow
		return 100, true
	}
	return clampConfidence(v), true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// clip cuts s to at most n runes without an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
