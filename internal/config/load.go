package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ENTRYBRAIN_INFERENCE_MODEL.
const EnvPrefix = "ENTRYBRAIN"

// Load reads configuration from path layered over Default(). A missing file
// is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if required || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	settings, err := cfg.settings()
	if err != nil {
		return Config{}, err
	}
	if err := ValidateSettings(settings); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// settings returns the decoded config in its JSON shape. Durations appear as
// integer nanoseconds.
func (c Config) settings() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("inference.provider", d.Inference.Provider)
	v.SetDefault("inference.model", d.Inference.Model)
	v.SetDefault("inference.base_url", d.Inference.BaseURL)
	v.SetDefault("inference.api_key", d.Inference.APIKey)
	v.SetDefault("inference.api_key_env", d.Inference.APIKeyEnv)
	v.SetDefault("inference.call_timeout", d.Inference.CallTimeout.String())

	p := d.Pipeline
	v.SetDefault("pipeline.guard_budget", p.GuardBudget.String())
	v.SetDefault("pipeline.similarity_threshold", p.SimilarityThreshold)
	v.SetDefault("pipeline.history_window", p.HistoryWindow)
	v.SetDefault("pipeline.summary_window", p.SummaryWindow)
	v.SetDefault("pipeline.override_window", p.OverrideWindow)
	v.SetDefault("pipeline.wisdom_limit", p.WisdomLimit)
	v.SetDefault("pipeline.default_benchmark_hours", p.DefaultBenchmarkHours)
	v.SetDefault("pipeline.project_min_estimate_hours", p.ProjectMinEstimateHours)

	t := p.Thresholds
	v.SetDefault("pipeline.thresholds.time_pass_multiplier", t.TimePassMultiplier)
	v.SetDefault("pipeline.thresholds.time_concern_multiplier", t.TimeConcernMultiplier)
	v.SetDefault("pipeline.thresholds.project_time_pass_hours", t.ProjectTimePassHours)
	v.SetDefault("pipeline.thresholds.project_time_concern_hours", t.ProjectTimeConcernHours)
	v.SetDefault("pipeline.thresholds.content_pass_words", t.ContentPassWords)
	v.SetDefault("pipeline.thresholds.content_pass_terms", t.ContentPassTerms)
	v.SetDefault("pipeline.thresholds.content_concern_words", t.ContentConcernWords)
	v.SetDefault("pipeline.thresholds.content_concern_terms", t.ContentConcernTerms)
	v.SetDefault("pipeline.thresholds.progress_fail_ratio", t.ProgressFailRatio)
	v.SetDefault("pipeline.thresholds.progress_strong_ratio", t.ProgressStrongRatio)
	v.SetDefault("pipeline.thresholds.progress_partial_ratio", t.ProgressPartialRatio)
	v.SetDefault("pipeline.thresholds.scope_strong_hours", t.ScopeStrongHours)
	v.SetDefault("pipeline.thresholds.scope_strong_progress", t.ScopeStrongProgress)
	v.SetDefault("pipeline.thresholds.scope_close_progress", t.ScopeCloseProgress)
	v.SetDefault("pipeline.thresholds.scope_minimal_hours", t.ScopeMinimalHours)

	w := d.Worker
	v.SetDefault("worker.concurrency", w.Concurrency)
	v.SetDefault("worker.soft_time_limit", w.SoftTimeLimit.String())
	v.SetDefault("worker.max_retries", w.MaxRetries)
	v.SetDefault("worker.backoff_initial", w.BackoffInitial.String())
	v.SetDefault("worker.backoff_max", w.BackoffMax.String())
	v.SetDefault("worker.poll_interval", w.PollInterval.String())
	v.SetDefault("worker.batch_size", w.BatchSize)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("logging.debug", d.Logging.Debug)
	v.SetDefault("logging.json", d.Logging.JSON)
}
