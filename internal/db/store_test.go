package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "nested", "entrybrain.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

type fixture struct {
	store   *Store
	userID  int64
	topicID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := openTestStore(t)

	userID, err := s.CreateUser(ctx, model.User{Email: "dev@example.com", Name: "Dev", ExperienceYears: 2})
	require.NoError(t, err)
	topicID, err := s.CreateTopic(ctx, model.Topic{Name: "React Hooks", Difficulty: 4, BenchmarkHours: 2.5})
	require.NoError(t, err)
	return fixture{store: s, userID: userID, topicID: topicID}
}

func (f fixture) entry(t *testing.T, mutate func(*model.Entry)) int64 {
	t.Helper()
	e := model.Entry{
		UserID:          f.userID,
		Topic:           &model.Topic{ID: f.topicID},
		Date:            time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Hours:           2,
		Text:            "Studied hooks",
		ProgressPercent: 20,
		IsActive:        true,
	}
	if mutate != nil {
		mutate(&e)
	}
	id, err := f.store.CreateEntry(context.Background(), e)
	require.NoError(t, err)
	return id
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	v, err := Version(context.Background(), s.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown database driver "oracle"`)
}

func TestEntryRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.entry(t, func(e *model.Entry) {
		e.Blockers = "Technical: flaky CI"
		e.IsCompleted = true
	})

	got, err := f.store.Entry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, f.userID, got.UserID)
	assert.InDelta(t, 2.0, got.UserExperience, 0.001)
	require.NotNil(t, got.Topic)
	assert.Equal(t, "React Hooks", got.Topic.Name)
	assert.Equal(t, 4, got.Topic.Difficulty)
	assert.InDelta(t, 2.5, got.Topic.BenchmarkHours, 0.001)
	assert.Equal(t, model.IntentLearning, got.Intent)
	assert.Equal(t, "2025-03-01", got.Date.Format(model.DateLayout))
	assert.Equal(t, "Technical: flaky CI", got.Blockers)
	assert.True(t, got.IsCompleted)
	assert.True(t, got.IsActive)
	assert.False(t, got.AdminOverride)
	assert.Equal(t, model.AIStatusPending, got.AIStatus)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.AIConfidence)
	assert.Nil(t, got.AIAnalyzedAt)
}

func TestEntryNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Entry(context.Background(), 999)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSubjectEntriesAndVelocity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	current := f.entry(t, nil)
	f.entry(t, func(e *model.Entry) {
		e.Date = time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
		e.Hours = 1
	})
	f.entry(t, func(e *model.Entry) {
		e.Date = time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
		e.Hours = 3
		e.Status = model.StatusApproved
	})
	f.entry(t, func(e *model.Entry) { e.IsActive = false })
	f.entry(t, func(e *model.Entry) {
		e.Topic = nil
		e.ProjectName = "Billing API"
		e.Intent = model.IntentProject
	})

	subject := model.Subject{TopicID: &f.topicID}
	priors, err := f.store.SubjectEntries(ctx, f.userID, subject, current)
	require.NoError(t, err)
	require.Len(t, priors, 2)
	assert.Equal(t, "2025-02-20", priors[0].Date.Format(model.DateLayout))
	assert.Equal(t, model.StatusApproved, priors[0].Status)
	assert.Equal(t, "2025-02-10", priors[1].Date.Format(model.DateLayout))

	avg, count, err := f.store.Velocity(ctx, f.userID, subject, current)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 2.0, avg, 0.001)

	project, err := f.store.SubjectEntries(ctx, f.userID, model.Subject{ProjectName: "Billing API"}, current)
	require.NoError(t, err)
	assert.Len(t, project, 1)

	none, err := f.store.SubjectEntries(ctx, f.userID, model.Subject{}, current)
	require.NoError(t, err)
	assert.Empty(t, none)

	avg, count, err = f.store.Velocity(ctx, f.userID, model.Subject{ProjectName: "Unknown"}, current)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Zero(t, avg)
}

func TestRecentOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.entry(t, func(e *model.Entry) {
		e.AIStatus = model.AIStatusAnalyzed
		e.AIDecision = model.DecisionFlag
		e.Status = model.StatusApproved
		e.AdminOverride = true
		e.OverrideReason = "legit research"
	})
	f.entry(t, func(e *model.Entry) {
		e.AIStatus = model.AIStatusError
		e.AdminOverride = true
	})
	f.entry(t, func(e *model.Entry) { e.AIStatus = model.AIStatusAnalyzed })
	f.entry(t, func(e *model.Entry) {
		e.AIStatus = model.AIStatusAnalyzed
		e.AIDecision = model.DecisionApprove
		e.Status = model.StatusRejected
		e.AdminOverride = true
		e.OverrideReason = "deleted entry"
		e.IsActive = false
	})

	got, err := f.store.RecentOverrides(ctx, f.userID, 20)
	require.NoError(t, err)
	assert.Equal(t, []model.Override{{
		AIDecision: model.DecisionFlag,
		Status:     model.StatusApproved,
		Reason:     "legit research",
	}}, got)
}

func TestWisdomMatchesKeywords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"React Basics", "Go Concurrency", "Advanced REACT patterns", "Hooks deep dive"} {
		_, err := f.store.CreateWisdom(ctx, model.Wisdom{
			CorrectionType:         "false_flag",
			AIOriginalDecision:     "flag",
			AdminCorrectedDecision: "approve",
			TopicName:              name,
			Reason:                 "reason " + name,
			CreatedAt:              base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	got, err := f.store.Wisdom(ctx, []string{"react", "hooks"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hooks deep dive", got[0].TopicName)
	assert.Equal(t, "Advanced REACT patterns", got[1].TopicName)

	empty, err := f.store.Wisdom(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWisdomTreatsKeywordsLiterally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"snake_case naming", "snakeXcase naming", "100% coverage", "1000 coverage"} {
		_, err := f.store.CreateWisdom(ctx, model.Wisdom{
			CorrectionType:         "false_flag",
			AIOriginalDecision:     "flag",
			AdminCorrectedDecision: "approve",
			TopicName:              name,
		})
		require.NoError(t, err)
	}

	got, err := f.store.Wisdom(ctx, []string{"snake_case"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "snake_case naming", got[0].TopicName)

	got, err = f.store.Wisdom(ctx, []string{"100%"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% coverage", got[0].TopicName)
}

func TestSaveAnalysisRespectsOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.entry(t, nil)
	locked := f.entry(t, func(e *model.Entry) {
		e.AdminOverride = true
		e.Status = model.StatusRejected
	})

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	analysis := model.Analysis{
		Decision:   model.DecisionApprove,
		Confidence: 88.5,
		Trace:      json.RawMessage(`{"final_decision":{"decision":"approve"}}`),
		AnalyzedAt: at,
		Status:     model.StatusApproved,
	}

	applied, err := f.store.SaveAnalysis(ctx, id, analysis)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := f.store.Entry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AIStatusAnalyzed, got.AIStatus)
	assert.Equal(t, model.DecisionApprove, got.AIDecision)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, 88.5, *got.AIConfidence, 0.001)
	assert.JSONEq(t, `{"final_decision":{"decision":"approve"}}`, string(got.AIChainOfThought))
	require.NotNil(t, got.AIAnalyzedAt)
	assert.True(t, at.Equal(*got.AIAnalyzedAt))
	assert.Equal(t, model.StatusApproved, got.Status)

	applied, err = f.store.SaveAnalysis(ctx, locked, analysis)
	require.NoError(t, err)
	assert.False(t, applied)
	got, err = f.store.Entry(ctx, locked)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, model.AIStatusPending, got.AIStatus)

	_, err = f.store.SaveAnalysis(ctx, 999, analysis)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestMarkFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.entry(t, nil)
	decision := model.DecisionFlag
	confidence := float64(model.TimeoutConfidence)

	applied, err := f.store.MarkFailure(ctx, id, model.Failure{
		AIStatus:   model.AIStatusTimeout,
		Decision:   &decision,
		Confidence: &confidence,
		Status:     model.StatusFlagged,
		Trace:      json.RawMessage(`{"error":"Analysis timed out. Flagged for manual review."}`),
		AnalyzedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := f.store.Entry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AIStatusTimeout, got.AIStatus)
	assert.Equal(t, model.DecisionFlag, got.AIDecision)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, -1, *got.AIConfidence, 0.001)
	assert.Equal(t, model.StatusFlagged, got.Status)

	applied, err = f.store.MarkFailure(ctx, id, model.Failure{
		AIStatus:   model.AIStatusError,
		Trace:      json.RawMessage(`{"error":"x"}`),
		AnalyzedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, applied)
	got, err = f.store.Entry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AIStatusError, got.AIStatus)
	assert.Equal(t, model.DecisionFlag, got.AIDecision)
	assert.Equal(t, model.StatusFlagged, got.Status)

	locked := f.entry(t, func(e *model.Entry) { e.AdminOverride = true })
	applied, err = f.store.MarkFailure(ctx, locked, model.Failure{AIStatus: model.AIStatusError, AnalyzedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPendingEntryIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.entry(t, nil)
	f.entry(t, func(e *model.Entry) { e.AIStatus = model.AIStatusAnalyzed })
	f.entry(t, func(e *model.Entry) { e.AdminOverride = true })
	f.entry(t, func(e *model.Entry) { e.IsActive = false })
	last := f.entry(t, nil)

	ids, err := f.store.PendingEntryIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{first, last}, ids)

	require.NoError(t, f.store.SetAIStatus(ctx, first, model.AIStatusError))
	ids, err = f.store.PendingEntryIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{last}, ids)
}
