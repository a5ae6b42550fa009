package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiKeyEnv = "GEMINI_API_KEY"

// GeminiConfig is Gemini API client configuration.
type GeminiConfig struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
}

// Gemini completes prompts through the Gemini API.
type Gemini struct {
	model  string
	client *genai.Client
}

// NewGemini constructs a Gemini-backed completer.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	apiKey := resolveKey(cfg.APIKey, cfg.APIKeyEnv, defaultGeminiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set api_key or api_key_env)")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{model: model, client: client}, nil
}

// Complete runs one GenerateContent call at temperature 0.
func (g *Gemini) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", classify("gemini generate", err)
	}
	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return "", fmt.Errorf("gemini response did not contain output text")
	}
	return output, nil
}
