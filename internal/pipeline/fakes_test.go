package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/model"
)

const (
	passResponse    = "Reasoning: The work is consistent with the context.\nVerdict: PASS\nConfidence: 90"
	approveResponse = "Reasoning: All stages agree the entry is genuine.\nDecision: APPROVE\nConfidence: 88"
)

type fakeHistory struct {
	priors    []model.PriorEntry
	overrides []model.Override
	wisdom    []model.Wisdom
	err       error

	gotKeywords []string
}

func (h *fakeHistory) SubjectEntries(context.Context, int64, model.Subject, int64) ([]model.PriorEntry, error) {
	return h.priors, h.err
}

func (h *fakeHistory) RecentOverrides(context.Context, int64, int) ([]model.Override, error) {
	return h.overrides, h.err
}

func (h *fakeHistory) Wisdom(_ context.Context, keywords []string, _ int) ([]model.Wisdom, error) {
	h.gotKeywords = keywords
	return h.wisdom, h.err
}

// scriptedCompleter answers evaluator prompts with stage and synthesis
// prompts with final, or fails every call with err.
type scriptedCompleter struct {
	mu      sync.Mutex
	stage   string
	final   string
	err     error
	prompts []string
	onCall  func(n int)
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, _ time.Duration) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	n := len(c.prompts)
	hook := c.onCall
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if c.err != nil {
		return "", c.err
	}
	if strings.Contains(prompt, "Stage 4 (Verdict Agent)") {
		return c.final, nil
	}
	return c.stage, nil
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPipelineConfig() config.PipelineConfig {
	return config.Default().Pipeline
}

func learningEntry() model.Entry {
	return model.Entry{
		ID:              7,
		UserID:          3,
		UserExperience:  2,
		Topic:           &model.Topic{ID: 11, Name: "React Hooks", Difficulty: 3, BenchmarkHours: 3},
		Intent:          model.IntentLearning,
		Date:            time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Hours:           2,
		Text:            "Studied useEffect cleanup functions and dependency arrays.",
		ProgressPercent: 20,
		IsActive:        true,
	}
}

func projectEntry() model.Entry {
	return model.Entry{
		ID:                 8,
		UserID:             3,
		ProjectName:        "Billing API",
		ProjectDescription: "REST service for invoices",
		Intent:             model.IntentProject,
		Date:               time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Hours:              3,
		Text:               "Implemented the invoice endpoint and database migration.",
		ProgressPercent:    30,
		IsActive:           true,
	}
}

func runEntry(p *Pipeline, e model.Entry, v Velocity) *State {
	st := p.Start(InputFromEntry(e, 3.0), v)
	p.Run(context.Background(), st)
	return st
}
