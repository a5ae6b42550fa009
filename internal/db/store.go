// Package db provides database connectivity, migrations and the entry store.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/metalagman/entrybrain/internal/model"
)

// Store persists users, topics, entries and admin corrections, and serves
// the history queries of the pipeline.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

type entryRow struct {
	ID                 int64           `db:"id"`
	UserID             int64           `db:"user_id"`
	Experience         float64         `db:"experience_years"`
	TopicID            sql.NullInt64   `db:"topic_id"`
	TopicName          sql.NullString  `db:"topic_name"`
	TopicParentID      sql.NullInt64   `db:"topic_parent_id"`
	TopicDifficulty    sql.NullInt64   `db:"topic_difficulty"`
	TopicBenchmark     sql.NullFloat64 `db:"topic_benchmark_hours"`
	ProjectName        string          `db:"project_name"`
	ProjectDescription string          `db:"project_description"`
	Intent             string          `db:"intent"`
	Date               string          `db:"date"`
	Hours              float64         `db:"hours"`
	Text               string          `db:"learned_text"`
	ProgressPercent    float64         `db:"progress_percent"`
	Blockers           string          `db:"blockers_text"`
	IsCompleted        bool            `db:"is_completed"`
	AIStatus           string          `db:"ai_status"`
	AIDecision         string          `db:"ai_decision"`
	AIConfidence       sql.NullFloat64 `db:"ai_confidence"`
	AIChainOfThought   sql.NullString  `db:"ai_chain_of_thought"`
	AIAnalyzedAt       sql.NullString  `db:"ai_analyzed_at"`
	Status             string          `db:"status"`
	AdminOverride      bool            `db:"admin_override"`
	OverrideReason     string          `db:"override_reason"`
	IsActive           bool            `db:"is_active"`
}

const entrySelect = `SELECT e.id, e.user_id, u.experience_years,
	e.topic_id, t.name AS topic_name, t.parent_id AS topic_parent_id,
	t.difficulty AS topic_difficulty, t.benchmark_hours AS topic_benchmark_hours,
	e.project_name, e.project_description, e.intent, e.date, e.hours, e.learned_text,
	e.progress_percent, e.blockers_text, e.is_completed,
	e.ai_status, e.ai_decision, e.ai_confidence, e.ai_chain_of_thought, e.ai_analyzed_at,
	e.status, e.admin_override, e.override_reason, e.is_active
	FROM entries e
	JOIN users u ON u.id = e.user_id
	LEFT JOIN topics t ON t.id = e.topic_id`

// Entry reads one entry with its topic. It returns model.ErrNotFound when
// the entry does not exist.
func (s *Store) Entry(ctx context.Context, id int64) (model.Entry, error) {
	var row entryRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(entrySelect+` WHERE e.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Entry{}, fmt.Errorf("read entry %d: %w", id, model.ErrNotFound)
		}
		return model.Entry{}, fmt.Errorf("read entry %d: %w", id, err)
	}
	return row.entry()
}

func (r entryRow) entry() (model.Entry, error) {
	date, err := time.Parse(model.DateLayout, r.Date)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parse entry %d date: %w", r.ID, err)
	}
	e := model.Entry{
		ID:                 r.ID,
		UserID:             r.UserID,
		UserExperience:     r.Experience,
		ProjectName:        r.ProjectName,
		ProjectDescription: r.ProjectDescription,
		Intent:             model.Intent(r.Intent),
		Date:               date,
		Hours:              r.Hours,
		Text:               r.Text,
		ProgressPercent:    r.ProgressPercent,
		Blockers:           r.Blockers,
		IsCompleted:        r.IsCompleted,
		AIStatus:           model.AIStatus(r.AIStatus),
		AIDecision:         model.Decision(r.AIDecision),
		Status:             model.Status(r.Status),
		AdminOverride:      r.AdminOverride,
		OverrideReason:     r.OverrideReason,
		IsActive:           r.IsActive,
	}
	if r.TopicID.Valid {
		t := &model.Topic{
			ID:             r.TopicID.Int64,
			Name:           r.TopicName.String,
			Difficulty:     int(r.TopicDifficulty.Int64),
			BenchmarkHours: r.TopicBenchmark.Float64,
		}
		if r.TopicParentID.Valid {
			parent := r.TopicParentID.Int64
			t.ParentID = &parent
		}
		e.Topic = t
	}
	if r.AIConfidence.Valid {
		c := r.AIConfidence.Float64
		e.AIConfidence = &c
	}
	if r.AIChainOfThought.Valid {
		e.AIChainOfThought = json.RawMessage(r.AIChainOfThought.String)
	}
	if r.AIAnalyzedAt.Valid {
		at, err := time.Parse(time.RFC3339, r.AIAnalyzedAt.String)
		if err != nil {
			return model.Entry{}, fmt.Errorf("parse entry %d analyzed_at: %w", r.ID, err)
		}
		e.AIAnalyzedAt = &at
	}
	return e, nil
}

// subjectFilter restricts a query on entries e to one subject.
func subjectFilter(subject model.Subject) (string, any) {
	if subject.TopicID != nil {
		return "e.topic_id = ?", *subject.TopicID
	}
	return "e.project_name = ?", subject.ProjectName
}

type priorRow struct {
	ID              int64   `db:"id"`
	Date            string  `db:"date"`
	Hours           float64 `db:"hours"`
	Text            string  `db:"learned_text"`
	ProgressPercent float64 `db:"progress_percent"`
	IsCompleted     bool    `db:"is_completed"`
	AIDecision      string  `db:"ai_decision"`
	Status          string  `db:"status"`
}

// SubjectEntries lists the user's other active entries on subject, newest first.
func (s *Store) SubjectEntries(ctx context.Context, userID int64, subject model.Subject, excludeID int64) ([]model.PriorEntry, error) {
	if subject.IsZero() {
		return nil, nil
	}
	clause, arg := subjectFilter(subject)
	q := `SELECT e.id, e.date, e.hours, e.learned_text, e.progress_percent, e.is_completed, e.ai_decision, e.status
		FROM entries e
		WHERE e.user_id = ? AND e.is_active = TRUE AND e.id <> ? AND ` + clause + `
		ORDER BY e.date DESC, e.id DESC`

	var rows []priorRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), userID, excludeID, arg); err != nil {
		return nil, fmt.Errorf("list subject entries: %w", err)
	}
	out := make([]model.PriorEntry, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse entry %d date: %w", r.ID, err)
		}
		out = append(out, model.PriorEntry{
			ID:              r.ID,
			Date:            date,
			Hours:           r.Hours,
			Text:            r.Text,
			ProgressPercent: r.ProgressPercent,
			IsCompleted:     r.IsCompleted,
			AIDecision:      model.Decision(r.AIDecision),
			Status:          model.Status(r.Status),
		})
	}
	return out, nil
}

// Velocity returns the average hours and count of the user's other active
// entries on subject.
func (s *Store) Velocity(ctx context.Context, userID int64, subject model.Subject, excludeID int64) (float64, int, error) {
	if subject.IsZero() {
		return 0, 0, nil
	}
	clause, arg := subjectFilter(subject)
	q := `SELECT COALESCE(AVG(e.hours), 0) AS avg_hours, COUNT(e.id) AS entry_count
		FROM entries e
		WHERE e.user_id = ? AND e.is_active = TRUE AND e.id <> ? AND ` + clause

	var row struct {
		AvgHours float64 `db:"avg_hours"`
		Count    int     `db:"entry_count"`
	}
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(q), userID, excludeID, arg); err != nil {
		return 0, 0, fmt.Errorf("read velocity: %w", err)
	}
	return row.AvgHours, row.Count, nil
}

// RecentOverrides lists the user's newest admin-overridden, analyzed entries.
func (s *Store) RecentOverrides(ctx context.Context, userID int64, limit int) ([]model.Override, error) {
	q := `SELECT ai_decision, status, override_reason FROM entries
		WHERE user_id = ? AND is_active = TRUE AND admin_override = TRUE AND ai_status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	var rows []struct {
		AIDecision string `db:"ai_decision"`
		Status     string `db:"status"`
		Reason     string `db:"override_reason"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), userID, string(model.AIStatusAnalyzed), limit); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	out := make([]model.Override, len(rows))
	for i, r := range rows {
		out[i] = model.Override{
			AIDecision: model.Decision(r.AIDecision),
			Status:     model.Status(r.Status),
			Reason:     r.Reason,
		}
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type wisdomRow struct {
	ID                     int64         `db:"id"`
	EntryID                sql.NullInt64 `db:"entry_id"`
	CorrectionType         string        `db:"correction_type"`
	AIOriginalDecision     string        `db:"ai_original_decision"`
	AdminCorrectedDecision string        `db:"admin_corrected_decision"`
	TopicName              string        `db:"topic_name"`
	EntryHours             float64       `db:"entry_hours"`
	EntryTextSnippet       string        `db:"entry_text_snippet"`
	Reason                 string        `db:"reason"`
	CreatedAt              string        `db:"created_at"`
}

// Wisdom lists the newest admin corrections whose topic name contains any of
// the keywords, case-insensitively.
func (s *Store) Wisdom(ctx context.Context, keywords []string, limit int) ([]model.Wisdom, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	conds := make([]string, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for i, kw := range keywords {
		conds[i] = `LOWER(topic_name) LIKE ? ESCAPE '\'`
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(kw))+"%")
	}
	args = append(args, limit)
	q := `SELECT id, entry_id, correction_type, ai_original_decision, admin_corrected_decision,
		topic_name, entry_hours, entry_text_snippet, reason, created_at
		FROM global_wisdom
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	var rows []wisdomRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list admin corrections: %w", err)
	}
	out := make([]model.Wisdom, 0, len(rows))
	for _, r := range rows {
		created, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse correction %d created_at: %w", r.ID, err)
		}
		out = append(out, model.Wisdom{
			ID:                     r.ID,
			EntryID:                r.EntryID.Int64,
			CorrectionType:         r.CorrectionType,
			AIOriginalDecision:     r.AIOriginalDecision,
			AdminCorrectedDecision: r.AdminCorrectedDecision,
			TopicName:              r.TopicName,
			EntryHours:             r.EntryHours,
			EntryTextSnippet:       r.EntryTextSnippet,
			Reason:                 r.Reason,
			CreatedAt:              created,
		})
	}
	return out, nil
}

// SaveAnalysis writes a completed analysis unless an admin has overridden
// the entry. applied is false when the override lock prevented the write.
func (s *Store) SaveAnalysis(ctx context.Context, id int64, a model.Analysis) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin save analysis: %w", err)
	}
	var overridden bool
	if err := tx.GetContext(ctx, &overridden, tx.Rebind(`SELECT admin_override FROM entries WHERE id = ?`), id); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("save analysis of entry %d: %w", id, model.ErrNotFound)
		}
		return false, fmt.Errorf("read override flag: %w", err)
	}
	if overridden {
		_ = tx.Rollback()
		return false, nil
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE entries
		SET ai_status = ?, ai_decision = ?, ai_confidence = ?, ai_chain_of_thought = ?, ai_analyzed_at = ?, status = ?
		WHERE id = ? AND admin_override = FALSE`),
		string(model.AIStatusAnalyzed), string(a.Decision), a.Confidence, nullableJSON(a.Trace),
		a.AnalyzedAt.UTC().Format(time.RFC3339), string(a.Status), id)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("update analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("read updated rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit save analysis: %w", err)
	}
	return n == 1, nil
}

// MarkFailure records an incomplete analysis unless an admin has overridden
// the entry. Nil and empty fields of f leave the stored values unchanged.
func (s *Store) MarkFailure(ctx context.Context, id int64, f model.Failure) (bool, error) {
	sets := []string{"ai_status = ?", "ai_chain_of_thought = ?", "ai_analyzed_at = ?"}
	args := []any{string(f.AIStatus), nullableJSON(f.Trace), f.AnalyzedAt.UTC().Format(time.RFC3339)}
	if f.Decision != nil {
		sets = append(sets, "ai_decision = ?")
		args = append(args, string(*f.Decision))
	}
	if f.Confidence != nil {
		sets = append(sets, "ai_confidence = ?")
		args = append(args, *f.Confidence)
	}
	if f.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, string(f.Status))
	}
	args = append(args, id)

	q := `UPDATE entries SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND admin_override = FALSE`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return false, fmt.Errorf("mark entry %d %s: %w", id, f.AIStatus, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read updated rows: %w", err)
	}
	return n == 1, nil
}

// SetAIStatus updates the analysis status alone.
func (s *Store) SetAIStatus(ctx context.Context, id int64, status model.AIStatus) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE entries SET ai_status = ? WHERE id = ?`), string(status), id); err != nil {
		return fmt.Errorf("set entry %d ai status: %w", id, err)
	}
	return nil
}

// PendingEntryIDs lists active, non-overridden entries awaiting analysis,
// oldest first.
func (s *Store) PendingEntryIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	q := `SELECT id FROM entries
		WHERE ai_status = ? AND is_active = TRUE AND admin_override = FALSE
		ORDER BY id
		LIMIT ?`
	if err := s.db.SelectContext(ctx, &ids, s.db.Rebind(q), string(model.AIStatusPending), limit); err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	return ids, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableInt64Ptr(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat64Ptr(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
