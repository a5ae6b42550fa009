package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/db"
	"github.com/metalagman/entrybrain/internal/inference"
	"github.com/metalagman/entrybrain/internal/model"
)

type cannedCompleter struct{}

func (cannedCompleter) Complete(context.Context, string, time.Duration) (string, error) {
	return "Reasoning: Consistent with the learner history.\nDecision: APPROVE\nConfidence: 90", nil
}

func TestWorkerApp_AnalyzesPendingEntries(t *testing.T) {
	c := config.Default()
	c.Database = testDatabase(t)
	c.Worker.PollInterval = 10 * time.Millisecond
	c.Worker.BackoffInitial = time.Millisecond
	c.Worker.BackoffMax = 2 * time.Millisecond
	c.Metrics.Addr = "127.0.0.1:0"

	ctx := context.Background()
	seed, closeSeed, err := openStore(ctx, c.Database)
	require.NoError(t, err)
	stats, err := loadFixtures(ctx, seed, strings.NewReader(sampleFixtures))
	require.NoError(t, err)
	closeSeed()

	var store *db.Store
	app := workerApp(c,
		fx.Decorate(func(inference.Completer) inference.Completer { return cannedCompleter{} }),
		fx.Populate(&store),
	)
	require.NoError(t, app.Err())
	require.NoError(t, app.Start(ctx))

	require.Eventually(t, func() bool {
		for _, id := range stats.Entries {
			e, err := store.Entry(ctx, id)
			if err != nil || e.AIStatus != model.AIStatusAnalyzed {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	e, err := store.Entry(ctx, stats.Entries[0])
	require.NoError(t, err)
	assert.NotEmpty(t, e.AIChainOfThought)
	assert.NotNil(t, e.AIAnalyzedAt)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, app.Stop(stopCtx))
}
