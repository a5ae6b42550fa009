package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/db"
	"github.com/metalagman/entrybrain/internal/model"
)

const sampleFixtures = `
users:
  - email: dev@example.com
    name: Dev
    experience_years: 2
topics:
  - name: Frontend
    difficulty: 2
  - name: React Hooks
    parent: Frontend
    difficulty: 4
    benchmark_hours: 2.5
entries:
  - user: dev@example.com
    topic: React Hooks
    date: 2025-03-01
    hours: 2
    text: Studied useEffect cleanup and dependency arrays.
    progress_percent: 20
  - user: dev@example.com
    project_name: Billing API
    intent: sbu_tasks
    date: 2025-03-02
    hours: 6
    text: Implemented invoice endpoints.
    progress_percent: 40
    blockers: "[Technical] flaky sandbox"
wisdom:
  - correction_type: false_flag
    ai_original_decision: flag
    admin_corrected_decision: approve
    topic_name: React Hooks
    entry_hours: 3
    reason: Deep dives take longer than the benchmark.
`

func testDatabase(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "entrybrain.db")}
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	store, closeFn, err := openStore(ctx, testDatabase(t))
	require.NoError(t, err)
	defer closeFn()

	stats, err := loadFixtures(ctx, store, strings.NewReader(sampleFixtures))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 2, stats.Topics)
	assert.Equal(t, 1, stats.Wisdom)
	require.Len(t, stats.Entries, 2)

	learning, err := store.Entry(ctx, stats.Entries[0])
	require.NoError(t, err)
	require.NotNil(t, learning.Topic)
	assert.Equal(t, "React Hooks", learning.Topic.Name)
	assert.Equal(t, 4, learning.Topic.Difficulty)
	assert.Equal(t, model.IntentLearning, learning.Intent)
	assert.Equal(t, model.AIStatusPending, learning.AIStatus)
	assert.Equal(t, "2025-03-01", learning.Date.Format(model.DateLayout))
	assert.True(t, learning.IsActive)

	project, err := store.Entry(ctx, stats.Entries[1])
	require.NoError(t, err)
	assert.Nil(t, project.Topic)
	assert.Equal(t, "Billing API", project.ProjectName)
	assert.Equal(t, model.IntentProject, project.Intent)
	assert.Equal(t, "[Technical] flaky sandbox", project.Blockers)

	wisdom, err := store.Wisdom(ctx, []string{"hooks"}, 3)
	require.NoError(t, err)
	require.Len(t, wisdom, 1)
	assert.Equal(t, "false_flag", wisdom[0].CorrectionType)
}

func TestLoadFixtures_UnknownReference(t *testing.T) {
	ctx := context.Background()
	store, closeFn, err := openStore(ctx, testDatabase(t))
	require.NoError(t, err)
	defer closeFn()

	_, err = loadFixtures(ctx, store, strings.NewReader(`
entries:
  - user: ghost@example.com
    hours: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown user "ghost@example.com"`)
}

func TestLoadFixtures_RejectsUnknownFields(t *testing.T) {
	ctx := context.Background()
	store, closeFn, err := openStore(ctx, testDatabase(t))
	require.NoError(t, err)
	defer closeFn()

	_, err = loadFixtures(ctx, store, strings.NewReader("users:\n  - mail: x@example.com\n"))
	require.Error(t, err)
}

func TestParseIDs(t *testing.T) {
	t.Parallel()

	ids, err := parseIDs([]string{"3", "17"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 17}, ids)

	_, err = parseIDs([]string{"x"})
	require.Error(t, err)
}
