package pipeline

import "github.com/metalagman/entrybrain/internal/model"

// Verdict is the three-valued outcome of an evaluator stage.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictConcern Verdict = "CONCERN"
	VerdictFail    Verdict = "FAIL"
)

// StageVerdict is what one evaluator stage concluded.
type StageVerdict struct {
	Verdict    Verdict `json:"verdict"`
	Confidence int     `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Outcome is the synthesis stage result.
type Outcome struct {
	Decision   model.Decision
	Confidence float64
	Reasoning  string
}

// missingVerdict stands in for a stage that never produced a verdict.
var missingVerdict = StageVerdict{Verdict: VerdictConcern, Confidence: 50}

func clampConfidence(v int) int {
	return min(100, max(0, v))
}
