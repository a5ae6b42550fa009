package inference

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const (
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultOpenAIKeyEnv = "OPENAI_API_KEY"
)

// OpenAIConfig is OpenAI API client configuration.
type OpenAIConfig struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
}

// OpenAI completes prompts through the Responses API.
type OpenAI struct {
	model  string
	client openai.Client
}

// NewOpenAI constructs an OpenAI-backed completer.
func NewOpenAI(cfg OpenAIConfig, httpClient *http.Client) (*OpenAI, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	apiKey := resolveKey(cfg.APIKey, cfg.APIKeyEnv, defaultOpenAIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required (set api_key or api_key_env)")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{model: model, client: openai.NewClient(opts...)}, nil
}

// Complete executes a single Responses API request.
func (c *OpenAI) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:       c.model,
		Temperature: openai.Float(0),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		return "", classify("openai responses.create", err)
	}
	if msg := strings.TrimSpace(resp.Error.Message); msg != "" {
		return "", fmt.Errorf("openai response failed: %s", msg)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", fmt.Errorf("openai response did not contain output text")
	}
	return output, nil
}

func resolveKey(key, env, defaultEnv string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	env = strings.TrimSpace(env)
	if env == "" {
		env = defaultEnv
	}
	return strings.TrimSpace(os.Getenv(env))
}
