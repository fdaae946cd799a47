package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"agrosmi/app/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrNoChoices = errors.New("no chat completion found")

// New builds a generative model client from its configuration.
func New(ctx context.Context, cfg config.ModelConfig) (llms.Model, error) {
	handler := LogCallbackHandler{Model: cfg.Model}

	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.Token),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(&http.Client{
				Timeout: cfg.Timeout,
			}),
			openai.WithCallback(handler),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}

		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}

		return client, nil
	case "googleai":
		client, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.Token),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create googleai client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// FirstChoice returns the first choice of a completion.
func FirstChoice(res *llms.ContentResponse) (*llms.ContentChoice, error) {
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return nil, ErrNoChoices
	}

	return res.Choices[0], nil
}

// StripFences removes the markdown code fence models like to put around JSON.
func StripFences(result string) string {
	result = strings.TrimSpace(result)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	return result
}
