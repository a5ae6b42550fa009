// Package config provides configuration loading and management for entrybrain.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `json:"database"  mapstructure:"database"`
	Inference InferenceConfig `json:"inference" mapstructure:"inference"`
	Pipeline  PipelineConfig  `json:"pipeline"  mapstructure:"pipeline"`
	Worker    WorkerConfig    `json:"worker"    mapstructure:"worker"`
	Metrics   MetricsConfig   `json:"metrics"   mapstructure:"metrics"`
	Logging   LoggingConfig   `json:"logging"   mapstructure:"logging"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn"    mapstructure:"dsn"`
}

// InferenceConfig describes the text-completion backend.
type InferenceConfig struct {
	Provider    string        `json:"provider"              mapstructure:"provider"` // "ollama", "openai", "gemini"
	Model       string        `json:"model"                 mapstructure:"model"`
	BaseURL     string        `json:"base_url,omitempty"    mapstructure:"base_url"`
	APIKey      string        `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv   string        `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	CallTimeout time.Duration `json:"call_timeout"          mapstructure:"call_timeout"`
}

// PipelineConfig holds the tunables of the validation pipeline.
type PipelineConfig struct {
	GuardBudget             time.Duration `json:"guard_budget"               mapstructure:"guard_budget"`
	SimilarityThreshold     float64       `json:"similarity_threshold"       mapstructure:"similarity_threshold"`
	HistoryWindow           int           `json:"history_window"             mapstructure:"history_window"`
	SummaryWindow           int           `json:"summary_window"             mapstructure:"summary_window"`
	OverrideWindow          int           `json:"override_window"            mapstructure:"override_window"`
	WisdomLimit             int           `json:"wisdom_limit"               mapstructure:"wisdom_limit"`
	DefaultBenchmarkHours   float64       `json:"default_benchmark_hours"    mapstructure:"default_benchmark_hours"`
	ProjectMinEstimateHours float64       `json:"project_min_estimate_hours" mapstructure:"project_min_estimate_hours"`
	Thresholds              Thresholds    `json:"thresholds"                 mapstructure:"thresholds"`
}

// Thresholds are the heuristic constants of the deterministic fallback judges.
type Thresholds struct {
	TimePassMultiplier      float64 `json:"time_pass_multiplier"       mapstructure:"time_pass_multiplier"`
	TimeConcernMultiplier   float64 `json:"time_concern_multiplier"    mapstructure:"time_concern_multiplier"`
	ProjectTimePassHours    float64 `json:"project_time_pass_hours"    mapstructure:"project_time_pass_hours"`
	ProjectTimeConcernHours float64 `json:"project_time_concern_hours" mapstructure:"project_time_concern_hours"`

	ContentPassWords    int `json:"content_pass_words"    mapstructure:"content_pass_words"`
	ContentPassTerms    int `json:"content_pass_terms"    mapstructure:"content_pass_terms"`
	ContentConcernWords int `json:"content_concern_words" mapstructure:"content_concern_words"`
	ContentConcernTerms int `json:"content_concern_terms" mapstructure:"content_concern_terms"`

	ProgressFailRatio    float64 `json:"progress_fail_ratio"    mapstructure:"progress_fail_ratio"`
	ProgressStrongRatio  float64 `json:"progress_strong_ratio"  mapstructure:"progress_strong_ratio"`
	ProgressPartialRatio float64 `json:"progress_partial_ratio" mapstructure:"progress_partial_ratio"`

	ScopeStrongHours    float64 `json:"scope_strong_hours"    mapstructure:"scope_strong_hours"`
	ScopeStrongProgress float64 `json:"scope_strong_progress" mapstructure:"scope_strong_progress"`
	ScopeCloseProgress  float64 `json:"scope_close_progress"  mapstructure:"scope_close_progress"`
	ScopeMinimalHours   float64 `json:"scope_minimal_hours"   mapstructure:"scope_minimal_hours"`
}

// WorkerConfig mirrors the task-queue policy the pipeline is dispatched with.
type WorkerConfig struct {
	Concurrency    int           `json:"concurrency"     mapstructure:"concurrency"`
	SoftTimeLimit  time.Duration `json:"soft_time_limit" mapstructure:"soft_time_limit"`
	MaxRetries     int           `json:"max_retries"     mapstructure:"max_retries"`
	BackoffInitial time.Duration `json:"backoff_initial" mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `json:"backoff_max"     mapstructure:"backoff_max"`
	PollInterval   time.Duration `json:"poll_interval"   mapstructure:"poll_interval"`
	BatchSize      int           `json:"batch_size"      mapstructure:"batch_size"`
}

// MetricsConfig configures the Prometheus endpoint of the worker.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Debug bool `json:"debug" mapstructure:"debug"`
	JSON  bool `json:"json"  mapstructure:"json"`
}
