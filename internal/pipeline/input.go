package pipeline

import (
	"github.com/metalagman/entrybrain/internal/model"
	"github.com/metalagman/entrybrain/internal/sanitize"
)

const (
	defaultDifficulty = 3
	fallbackBenchmark = 3.0
)

// InputFromEntry builds the sanitized pipeline input for e. Every piece of
// user-authored text passes through sanitize.Text here.
func InputFromEntry(e model.Entry, defaultBenchmark float64) Input {
	if defaultBenchmark <= 0 {
		defaultBenchmark = fallbackBenchmark
	}
	in := Input{
		EntryID:            e.ID,
		UserID:             e.UserID,
		Intent:             e.Intent.Normalize(),
		Subject:            e.Subject(),
		TopicName:          NoTopic,
		Difficulty:         defaultDifficulty,
		BenchmarkHours:     defaultBenchmark,
		Experience:         e.UserExperience,
		ProjectName:        sanitize.Text(e.ProjectName),
		ProjectDescription: sanitize.Text(e.ProjectDescription),
		Hours:              e.Hours,
		Text:               sanitize.Text(e.Text),
		Blockers:           sanitize.Text(e.Blockers),
		ProgressPercent:    e.ProgressPercent,
		IsCompleted:        e.IsCompleted,
	}
	if t := e.Topic; t != nil {
		in.TopicName = sanitize.Text(t.Name)
		if t.Difficulty > 0 {
			in.Difficulty = t.Difficulty
		}
		if t.BenchmarkHours > 0 {
			in.BenchmarkHours = t.BenchmarkHours
		}
	}
	return in
}
