package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metalagman/entrybrain/internal/db"
	"github.com/metalagman/entrybrain/internal/model"
)

type fixtureFile struct {
	Users   []fixtureUser   `yaml:"users"`
	Topics  []fixtureTopic  `yaml:"topics"`
	Entries []fixtureEntry  `yaml:"entries"`
	Wisdom  []fixtureWisdom `yaml:"wisdom"`
}

type fixtureUser struct {
	Email           string  `yaml:"email"`
	Name            string  `yaml:"name"`
	ExperienceYears float64 `yaml:"experience_years"`
}

type fixtureTopic struct {
	Name           string  `yaml:"name"`
	Parent         string  `yaml:"parent"`
	Difficulty     int     `yaml:"difficulty"`
	BenchmarkHours float64 `yaml:"benchmark_hours"`
}

type fixtureEntry struct {
	User               string    `yaml:"user"`
	Topic              string    `yaml:"topic"`
	ProjectName        string    `yaml:"project_name"`
	ProjectDescription string    `yaml:"project_description"`
	Intent             string    `yaml:"intent"`
	Date               time.Time `yaml:"date"`
	Hours              float64   `yaml:"hours"`
	Text               string    `yaml:"text"`
	ProgressPercent    float64   `yaml:"progress_percent"`
	Blockers           string    `yaml:"blockers"`
	IsCompleted        bool      `yaml:"is_completed"`
	AIDecision         string    `yaml:"ai_decision"`
	AIStatus           string    `yaml:"ai_status"`
	Status             string    `yaml:"status"`
	AdminOverride      bool      `yaml:"admin_override"`
	OverrideReason     string    `yaml:"override_reason"`
	Inactive           bool      `yaml:"inactive"`
}

type fixtureWisdom struct {
	CorrectionType         string  `yaml:"correction_type"`
	AIOriginalDecision     string  `yaml:"ai_original_decision"`
	AdminCorrectedDecision string  `yaml:"admin_corrected_decision"`
	TopicName              string  `yaml:"topic_name"`
	EntryHours             float64 `yaml:"entry_hours"`
	EntryTextSnippet       string  `yaml:"entry_text_snippet"`
	Reason                 string  `yaml:"reason"`
}

type fixtureStats struct {
	Users   int
	Topics  int
	Entries []int64
	Wisdom  int
}

// loadFixtures inserts the YAML document read from r. Entries reference
// users by email and topics by name; topics may reference earlier topics
// as their parent.
func loadFixtures(ctx context.Context, store *db.Store, r io.Reader) (fixtureStats, error) {
	var f fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fixtureStats{}, fmt.Errorf("decode fixtures: %w", err)
	}

	var stats fixtureStats
	users := map[string]int64{}
	for _, u := range f.Users {
		id, err := store.CreateUser(ctx, model.User{Email: u.Email, Name: u.Name, ExperienceYears: u.ExperienceYears})
		if err != nil {
			return stats, err
		}
		users[u.Email] = id
		stats.Users++
	}

	topics := map[string]*model.Topic{}
	for _, t := range f.Topics {
		topic := model.Topic{Name: t.Name, Difficulty: t.Difficulty, BenchmarkHours: t.BenchmarkHours}
		if t.Parent != "" {
			parent, ok := topics[t.Parent]
			if !ok {
				return stats, fmt.Errorf("topic %q: unknown parent %q", t.Name, t.Parent)
			}
			topic.ParentID = &parent.ID
		}
		id, err := store.CreateTopic(ctx, topic)
		if err != nil {
			return stats, err
		}
		topic.ID = id
		topics[t.Name] = &topic
		stats.Topics++
	}

	for i, fe := range f.Entries {
		userID, ok := users[fe.User]
		if !ok {
			return stats, fmt.Errorf("entry %d: unknown user %q", i, fe.User)
		}
		e := model.Entry{
			UserID:             userID,
			ProjectName:        fe.ProjectName,
			ProjectDescription: fe.ProjectDescription,
			Intent:             model.Intent(fe.Intent),
			Date:               fe.Date,
			Hours:              fe.Hours,
			Text:               fe.Text,
			ProgressPercent:    fe.ProgressPercent,
			Blockers:           fe.Blockers,
			IsCompleted:        fe.IsCompleted,
			AIStatus:           model.AIStatus(fe.AIStatus),
			AIDecision:         model.Decision(fe.AIDecision),
			Status:             model.Status(fe.Status),
			AdminOverride:      fe.AdminOverride,
			OverrideReason:     fe.OverrideReason,
			IsActive:           !fe.Inactive,
		}
		if fe.Topic != "" {
			t, ok := topics[fe.Topic]
			if !ok {
				return stats, fmt.Errorf("entry %d: unknown topic %q", i, fe.Topic)
			}
			e.Topic = t
		}
		if e.Date.IsZero() {
			e.Date = time.Now().UTC()
		}
		id, err := store.CreateEntry(ctx, e)
		if err != nil {
			return stats, err
		}
		stats.Entries = append(stats.Entries, id)
	}

	for _, w := range f.Wisdom {
		_, err := store.CreateWisdom(ctx, model.Wisdom{
			CorrectionType:         w.CorrectionType,
			AIOriginalDecision:     w.AIOriginalDecision,
			AdminCorrectedDecision: w.AdminCorrectedDecision,
			TopicName:              w.TopicName,
			EntryHours:             w.EntryHours,
			EntryTextSnippet:       w.EntryTextSnippet,
			Reason:                 w.Reason,
		})
		if err != nil {
			return stats, err
		}
		stats.Wisdom++
	}
	return stats, nil
}
