package pipeline

import "encoding/json"

// Execution paths recorded per stage.
const (
	PathLogic     = "logic"
	PathInference = "inference"
	PathFallback  = "fallback"
)

// Trace keys, one per stage.
const (
	StageContext  = "context_analysis"
	StageTime     = "time_analysis"
	StageContent  = "content_analysis"
	StageProgress = "progress_analysis"
	StageFinal    = "final_decision"
)

// Trace is the persisted reasoning record of one run.
type Trace struct {
	RunID    string    `json:"run_id"`
	Intent   string    `json:"intent"`
	Context  *StageLog `json:"context_analysis,omitempty"`
	Time     *StageLog `json:"time_analysis,omitempty"`
	Content  *StageLog `json:"content_analysis,omitempty"`
	Progress *StageLog `json:"progress_analysis,omitempty"`
	Final    *FinalLog `json:"final_decision,omitempty"`
}

// StageLog documents one stage: what it concluded and which path produced it.
type StageLog struct {
	Summary     string   `json:"summary"`
	Score       *int     `json:"score"`
	Verdict     Verdict  `json:"verdict,omitempty"`
	Path        string   `json:"path"`
	PathReason  string   `json:"path_reason"`
	Details     string   `json:"details"`
	Penalties   []string `json:"penalties,omitempty"`
	RawResponse string   `json:"raw_inference_response,omitempty"`
}

// Scorecard breaks the final confidence down by evaluator.
type Scorecard struct {
	Time      int `json:"time"`
	Quality   int `json:"quality"`
	Relevance int `json:"relevance"`
}

// StageVerdicts lists each evaluator's verdict for the final log.
type StageVerdicts struct {
	Time     Verdict `json:"time"`
	Content  Verdict `json:"content"`
	Progress Verdict `json:"progress"`
}

// FinalLog documents the synthesis stage.
type FinalLog struct {
	Summary     string        `json:"summary"`
	Confidence  float64       `json:"confidence"`
	Decision    string        `json:"decision"`
	Reason      string        `json:"reason"`
	Scores      Scorecard     `json:"scores"`
	Verdicts    StageVerdicts `json:"node_verdicts"`
	Penalty     string        `json:"penalty"`
	Flags       []string      `json:"flags"`
	Guardrails  []string      `json:"guardrails,omitempty"`
	Path        string        `json:"path"`
	PathReason  string        `json:"path_reason"`
	Details     string        `json:"details"`
	RawResponse string        `json:"raw_inference_response,omitempty"`
}

// Stage returns the log recorded under key, if any.
func (t *Trace) Stage(key string) *StageLog {
	switch key {
	case StageContext:
		return t.Context
	case StageTime:
		return t.Time
	case StageContent:
		return t.Content
	case StageProgress:
		return t.Progress
	}
	return nil
}

func (t *Trace) setStage(key string, l *StageLog) {
	switch key {
	case StageContext:
		t.Context = l
	case StageTime:
		t.Time = l
	case StageContent:
		t.Content = l
	case StageProgress:
		t.Progress = l
	}
}

// Paths returns the recorded path of each stage in execution order.
func (t *Trace) Paths() map[string]string {
	out := make(map[string]string, 5)
	for _, key := range []string{StageContext, StageTime, StageContent, StageProgress} {
		if l := t.Stage(key); l != nil {
			out[key] = l.Path
		}
	}
	if t.Final != nil {
		out[StageFinal] = t.Final.Path
	}
	return out
}

// Marshal encodes the trace for persistence.
func (t *Trace) Marshal() (json.RawMessage, error) {
	return json.Marshal(t)
}

// ErrorTrace is the trace written for runs that did not complete.
func ErrorTrace(msg string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return raw
}
