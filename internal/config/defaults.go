package config

import "time"

// Default returns the configuration used when no file overrides a key.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    ".entrybrain/entrybrain.db",
		},
		Inference: InferenceConfig{
			Provider:    "ollama",
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434",
			CallTimeout: 15 * time.Second,
		},
		Pipeline: PipelineConfig{
			GuardBudget:             55 * time.Second,
			SimilarityThreshold:     0.70,
			HistoryWindow:           10,
			SummaryWindow:           5,
			OverrideWindow:          20,
			WisdomLimit:             3,
			DefaultBenchmarkHours:   3.0,
			ProjectMinEstimateHours: 10.0,
			Thresholds:              DefaultThresholds(),
		},
		Worker: WorkerConfig{
			Concurrency:    4,
			SoftTimeLimit:  60 * time.Second,
			MaxRetries:     3,
			BackoffInitial: time.Second,
			BackoffMax:     60 * time.Second,
			PollInterval:   5 * time.Second,
			BatchSize:      50,
		},
	}
}

// DefaultThresholds returns the fallback heuristics as originally tuned.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimePassMultiplier:      1.5,
		TimeConcernMultiplier:   2.5,
		ProjectTimePassHours:    4,
		ProjectTimeConcernHours: 8,

		ContentPassWords:    40,
		ContentPassTerms:    2,
		ContentConcernWords: 20,
		ContentConcernTerms: 1,

		ProgressFailRatio:    0.3,
		ProgressStrongRatio:  0.8,
		ProgressPartialRatio: 0.5,

		ScopeStrongHours:    2,
		ScopeStrongProgress: 80,
		ScopeCloseProgress:  60,
		ScopeMinimalHours:   1,
	}
}
