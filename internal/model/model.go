// Package model defines the records the validation pipeline reads and writes.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when an entry no longer exists.
var ErrNotFound = errors.New("entry not found")

// Intent selects which pipeline variant judges an entry.
type Intent string

const (
	// IntentLearning is topic-based learning work.
	IntentLearning Intent = "lnd_tasks"
	// IntentProject is work on a named project.
	IntentProject Intent = "sbu_tasks"
)

// Normalize returns the intent, defaulting unknown values to learning.
func (i Intent) Normalize() Intent {
	if i == IntentProject {
		return IntentProject
	}
	return IntentLearning
}

// Label is the human name used in prompts.
func (i Intent) Label() string {
	if i.Normalize() == IntentProject {
		return "SBU Tasks"
	}
	return "L&D Tasks"
}

// AIStatus tracks the analysis lifecycle of an entry.
type AIStatus string

const (
	AIStatusPending  AIStatus = "pending"
	AIStatusAnalyzed AIStatus = "analyzed"
	AIStatusError    AIStatus = "error"
	AIStatusTimeout  AIStatus = "timeout"
)

// Decision is the pipeline's final verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionFlag    Decision = "flag"
	DecisionPending Decision = "pending"
	// DecisionReject only appears on legacy rows.
	DecisionReject Decision = "reject"
)

// Status is the review status of an entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusRejected Status = "rejected"
)

// StatusFor maps a decision to the entry status it implies. Pending leaves
// the current status untouched.
func StatusFor(d Decision, current Status) Status {
	switch d {
	case DecisionApprove:
		return StatusApproved
	case DecisionFlag:
		return StatusFlagged
	default:
		return current
	}
}

// DateLayout is the storage and display format of entry dates.
const DateLayout = "2006-01-02"

// TimeoutConfidence is stored when analysis hit the hard task deadline.
const TimeoutConfidence = -1

// User is the author of entries.
type User struct {
	ID              int64
	Email           string
	Name            string
	ExperienceYears float64
}

// Topic is a node in the learning topic tree.
type Topic struct {
	ID             int64
	Name           string
	ParentID       *int64
	Difficulty     int
	BenchmarkHours float64
}

// Entry is a single work log record.
type Entry struct {
	ID                 int64
	UserID             int64
	UserExperience     float64
	Topic              *Topic
	ProjectName        string
	ProjectDescription string
	Intent             Intent
	Date               time.Time
	Hours              float64
	Text               string
	ProgressPercent    float64
	Blockers           string
	IsCompleted        bool

	AIStatus         AIStatus
	AIDecision       Decision
	AIConfidence     *float64
	AIChainOfThought json.RawMessage
	AIAnalyzedAt     *time.Time

	Status         Status
	AdminOverride  bool
	OverrideReason string
	IsActive       bool
}

// SubjectName returns the topic name, or the project name for topic-less entries.
func (e Entry) SubjectName() string {
	if e.Topic != nil {
		return e.Topic.Name
	}
	return e.ProjectName
}

// PriorEntry is the projection of a historical entry used for context.
type PriorEntry struct {
	ID              int64
	Date            time.Time
	Hours           float64
	Text            string
	ProgressPercent float64
	IsCompleted     bool
	AIDecision      Decision
	Status          Status
}

// Override is a past human correction of an analyzed entry.
type Override struct {
	AIDecision Decision
	Status     Status
	Reason     string
}

// Wisdom is an admin correction consulted by later analyses.
type Wisdom struct {
	ID                     int64
	EntryID                int64
	CorrectionType         string
	AIOriginalDecision     string
	AdminCorrectedDecision string
	TopicName              string
	EntryHours             float64
	EntryTextSnippet       string
	Reason                 string
	CreatedAt              time.Time
}

// Analysis is the result written back to an entry after a successful run.
type Analysis struct {
	Decision   Decision
	Confidence float64
	Trace      json.RawMessage
	AnalyzedAt time.Time
	Status     Status
}

// Failure is written when an analysis could not complete normally.
type Failure struct {
	AIStatus AIStatus
	// Decision and Confidence are left unchanged when nil.
	Decision   *Decision
	Confidence *float64
	// Status is left unchanged when empty.
	Status     Status
	Trace      json.RawMessage
	AnalyzedAt time.Time
}

// Subject identifies what an entry's history is grouped by: a topic, or a
// project name for topic-less entries.
type Subject struct {
	TopicID     *int64
	ProjectName string
}

// IsZero reports whether the entry has neither a topic nor a project.
func (s Subject) IsZero() bool {
	return s.TopicID == nil && s.ProjectName == ""
}

// Subject returns the grouping key of the entry.
func (e Entry) Subject() Subject {
	if e.Topic != nil {
		id := e.Topic.ID
		return Subject{TopicID: &id}
	}
	return Subject{ProjectName: e.ProjectName}
}
