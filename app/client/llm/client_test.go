package llm

import (
	"context"
	"testing"

	"agrosmi/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		`{"next":"water"}`:                     `{"next":"water"}`,
		"```json\n{\"next\":\"water\"}\n```":   `{"next":"water"}`,
		"  ```\n{\"next\":\"FINISH\"}```  ":    `{"next":"FINISH"}`,
		"json {\"next\":\"risk\"}":             `{"next":"risk"}`,
	}

	for in, want := range tests {
		assert.Equal(t, want, StripFences(in))
	}
}

func TestFirstChoice(t *testing.T) {
	_, err := FirstChoice(nil)
	require.ErrorIs(t, err, ErrNoChoices)

	_, err = FirstChoice(&llms.ContentResponse{})
	require.ErrorIs(t, err, ErrNoChoices)

	choice, err := FirstChoice(&llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", choice.Content)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{Provider: "bedrock", Token: "t", Model: "m"})
	require.Error(t, err)
}

func TestNewOpenAI(t *testing.T) {
	model, err := New(context.Background(), config.ModelConfig{
		Provider: "openai",
		BaseURL:  "http://127.0.0.1:1/v1",
		Token:    "sk-test",
		Model:    "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NotNil(t, model)
}
