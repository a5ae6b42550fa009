package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama completes prompts against a local Ollama server.
type Ollama struct {
	llm *ollama.LLM
}

// NewOllama constructs an Ollama-backed completer.
func NewOllama(model, baseURL string, httpClient *http.Client) (*Ollama, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	opts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	}
	if httpClient != nil {
		opts = append(opts, ollama.WithHTTPClient(httpClient))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &Ollama{llm: llm}, nil
}

// Complete runs one non-streaming generation at temperature 0.
func (o *Ollama) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", classify("ollama", err)
	}
	return strings.TrimSpace(out), nil
}
