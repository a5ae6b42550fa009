package pipeline

import (
	"time"

	"github.com/metalagman/entrybrain/internal/model"
)

// NoTopic is the topic name used for entries without a topic.
const NoTopic = "N/A"

// Input is the immutable, sanitized view of the entry under analysis.
type Input struct {
	EntryID            int64
	UserID             int64
	Intent             model.Intent
	Subject            model.Subject
	TopicName          string
	Difficulty         int
	BenchmarkHours     float64
	Experience         float64
	ProjectName        string
	ProjectDescription string
	Hours              float64
	Text               string
	Blockers           string
	ProgressPercent    float64
	IsCompleted        bool
}

// Velocity summarizes the learner's history on the same subject.
type Velocity struct {
	AvgHours float64
	Count    int
}

// TrajectoryPoint is one step of the progress timeline, oldest first.
type TrajectoryPoint struct {
	Date     string  `json:"date"`
	Progress float64 `json:"progress"`
	Hours    float64 `json:"hours"`
	Summary  string  `json:"summary"`
	Status   string  `json:"status"`
}

// Context is everything Stage 0 derives from stored history.
type Context struct {
	PriorCount     int
	Summaries      []string
	PriorTexts     []string
	Similarity     float64
	CopyPaste      bool
	Coherent       bool
	CoherenceNote  string
	TotalHours     float64
	Trajectory     []TrajectoryPoint
	EstimatedTotal float64
	BlockerSummary string
	Pace           string
	Feedback       Optional[string]
	Summary        string
}

// Verdicts holds the three evaluator outcomes.
type Verdicts struct {
	Time     Optional[StageVerdict]
	Content  Optional[StageVerdict]
	Progress Optional[StageVerdict]
}

// State is threaded through every stage of one run. Stage 0 fills Context,
// evaluators fill Verdicts and bump Failures, synthesis fills Outcome.
type State struct {
	RunID    string
	Input    Input
	Velocity Velocity
	Started  time.Time

	Context  Context
	Verdicts Verdicts
	Failures int
	Outcome  Outcome
	Trace    Trace
}

// NewState returns a fresh state for one run.
func NewState(runID string, in Input, v Velocity, started time.Time) *State {
	in.Intent = in.Intent.Normalize()
	return &State{
		RunID:    runID,
		Input:    in,
		Velocity: v,
		Started:  started,
		Context: Context{
			Coherent:       true,
			EstimatedTotal: in.BenchmarkHours,
		},
		Outcome: Outcome{Decision: model.DecisionPending},
		Trace:   Trace{RunID: runID, Intent: string(in.Intent.Normalize())},
	}
}

// IsProject reports whether the project variant judges this run.
func (s *State) IsProject() bool {
	return s.Input.Intent == model.IntentProject
}

// SubjectLabel names the topic or project in prompts.
func (s *State) SubjectLabel() string {
	if s.IsProject() {
		if s.Input.ProjectName == "" {
			return "?"
		}
		return s.Input.ProjectName
	}
	return s.Input.TopicName
}
