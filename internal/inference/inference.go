// Package inference provides text-completion backends for the pipeline.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/metrics"
)

// ErrUnavailable reports that the backend could not be reached at all.
var ErrUnavailable = errors.New("inference backend unavailable")

// Completer is an opaque text-completion service. Implementations decode
// deterministically and never stream.
type Completer interface {
	Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// IsUnavailable reports whether err means the backend was unreachable.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// New builds the configured backend wrapped with tracing and metrics.
func New(ctx context.Context, cfg config.InferenceConfig, rec *metrics.Recorder) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "ollama":
		c, err = NewOllama(cfg.Model, cfg.BaseURL, nil)
	case "openai":
		c, err = NewOpenAI(OpenAIConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APIKeyEnv: cfg.APIKeyEnv,
		}, nil)
	case "gemini":
		c, err = NewGemini(ctx, GeminiConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APIKeyEnv: cfg.APIKeyEnv,
		})
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(c, cfg.Provider, rec), nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify wraps transport failures so callers can test with errors.Is.
func classify(provider string, err error) error {
	if IsUnavailable(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", provider, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}
