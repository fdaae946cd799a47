package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  decision:
    token: sk-decision
    model: gemini-2.5-flash
  responder:
    token: sk-responder
    model: gemini-2.5-flash
    temperature: 0.2
capabilities:
  - name: get_weather_forecast
    server: weather
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "data/history", cfg.Storage.Path)
	assert.Equal(t, 6, cfg.Orchestrator.MaxCycles)
	assert.Equal(t, 2, cfg.Orchestrator.DecisionAttempts)
	assert.Equal(t, "vision", cfg.Orchestrator.VisionResponder)
	assert.Equal(t, "sustainability", cfg.Orchestrator.SafetyResponder)
	assert.Equal(t, []string{"production", "risk"}, cfg.Orchestrator.Authorities)
	assert.Equal(t, 10, cfg.Orchestrator.HistoryLimit)
	assert.Equal(t, 8, cfg.Responders.MaxIterations)
	assert.Equal(t, "openai", cfg.LLM.Decision.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Decision.Timeout)
	assert.Equal(t, "get_weather_forecast", cfg.Capabilities[0].Tool)
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing decision model",
			body: `
llm:
  responder:
    token: sk
    model: m
`,
		},
		{
			name: "unknown storage driver",
			body: `
storage:
  driver: postgres
llm:
  decision: {token: sk, model: m}
  responder: {token: sk, model: m}
`,
		},
		{
			name: "capability without server",
			body: `
llm:
  decision: {token: sk, model: m}
  responder: {token: sk, model: m}
capabilities:
  - name: get_market_price
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestModelFor(t *testing.T) {
	vision := ModelConfig{Model: "vision-model"}
	cfg := &Config{
		LLM: LLM{
			Responder: ModelConfig{Model: "default"},
			Vision:    &vision,
			Overrides: map[string]ModelConfig{"water": {Model: "water-model"}},
		},
		Orchestrator: Orchestrator{VisionResponder: "vision"},
	}

	assert.Equal(t, "water-model", cfg.ModelFor("water").Model)
	assert.Equal(t, "vision-model", cfg.ModelFor("vision").Model)
	assert.Equal(t, "default", cfg.ModelFor("risk").Model)
}
