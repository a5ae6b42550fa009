package db

import (
	"context"
	"fmt"
	"time"

	"github.com/metalagman/entrybrain/internal/model"
)

// CreateUser inserts u and returns its id.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO users(email, name, experience_years, created_at)
		VALUES(?, ?, ?, ?) RETURNING id`),
		u.Email, u.Name, u.ExperienceYears, now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// CreateTopic inserts t and returns its id.
func (s *Store) CreateTopic(ctx context.Context, t model.Topic) (int64, error) {
	if t.Difficulty == 0 {
		t.Difficulty = 3
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO topics(name, parent_id, difficulty, benchmark_hours, created_at)
		VALUES(?, ?, ?, ?, ?) RETURNING id`),
		t.Name, nullableInt64Ptr(t.ParentID), t.Difficulty, t.BenchmarkHours, now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert topic: %w", err)
	}
	return id, nil
}

// CreateEntry inserts e and returns its id. Empty lifecycle fields default
// to pending; the topic is referenced by e.Topic.ID.
func (s *Store) CreateEntry(ctx context.Context, e model.Entry) (int64, error) {
	var topicID *int64
	if e.Topic != nil {
		topicID = &e.Topic.ID
	}
	if e.Intent == "" {
		e.Intent = model.IntentLearning
	}
	if e.AIStatus == "" {
		e.AIStatus = model.AIStatusPending
	}
	if e.AIDecision == "" {
		e.AIDecision = model.DecisionPending
	}
	if e.Status == "" {
		e.Status = model.StatusPending
	}
	var analyzedAt any
	if e.AIAnalyzedAt != nil {
		analyzedAt = e.AIAnalyzedAt.UTC().Format(time.RFC3339)
	}

	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO entries(
		user_id, topic_id, project_name, project_description, intent, date, hours, learned_text,
		progress_percent, blockers_text, is_completed,
		ai_status, ai_decision, ai_confidence, ai_chain_of_thought, ai_analyzed_at,
		status, admin_override, override_reason, is_active, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		e.UserID, nullableInt64Ptr(topicID), e.ProjectName, e.ProjectDescription, string(e.Intent),
		e.Date.Format(model.DateLayout), e.Hours, e.Text,
		e.ProgressPercent, e.Blockers, e.IsCompleted,
		string(e.AIStatus), string(e.AIDecision), nullableFloat64Ptr(e.AIConfidence), nullableJSON(e.AIChainOfThought), analyzedAt,
		string(e.Status), e.AdminOverride, e.OverrideReason, e.IsActive, now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return id, nil
}

// CreateWisdom inserts an admin correction and returns its id.
func (s *Store) CreateWisdom(ctx context.Context, w model.Wisdom) (int64, error) {
	var entryID *int64
	if w.EntryID != 0 {
		entryID = &w.EntryID
	}
	created := now()
	if !w.CreatedAt.IsZero() {
		created = w.CreatedAt.UTC().Format(time.RFC3339)
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO global_wisdom(
		entry_id, correction_type, ai_original_decision, admin_corrected_decision,
		topic_name, entry_hours, entry_text_snippet, reason, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		nullableInt64Ptr(entryID), w.CorrectionType, w.AIOriginalDecision, w.AdminCorrectedDecision,
		w.TopicName, w.EntryHours, w.EntryTextSnippet, w.Reason, created).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert admin correction: %w", err)
	}
	return id, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
