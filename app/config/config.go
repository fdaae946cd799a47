package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log          Log          `yaml:"log"`
	HTTP         HTTP         `yaml:"http"`
	Storage      Storage      `yaml:"storage"`
	KPI          KPI          `yaml:"kpi"`
	LLM          LLM          `yaml:"llm"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Responders   Responders   `yaml:"responders"`
	Classifier   Classifier   `yaml:"classifier"`
	MCP          MCP          `yaml:"mcp"`
	Capabilities []Capability `yaml:"capabilities" validate:"dive"`
}

type LLM struct {
	// Model used by the supervisor to pick the next responder
	Decision ModelConfig `yaml:"decision" validate:"required"`
	// Default model for domain responders
	Responder ModelConfig `yaml:"responder" validate:"required"`
	// Multimodal model for the vision responder, falls back to Responder
	Vision *ModelConfig `yaml:"vision"`
	// Per-responder model overrides keyed by responder id
	Overrides map[string]ModelConfig `yaml:"overrides" validate:"dive"`
}

type ModelConfig struct {
	// Provider name: openai (any OpenAI compatible API) or googleai
	Provider string `yaml:"provider" example:"openai" validate:"oneof=openai googleai"`
	// OpenAI compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"google/gemini-2.5-flash" validate:"required"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"0" validate:"gte=0,lte=2"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"30s"`
}

type Orchestrator struct {
	// Upper bound of DECIDE cycles per turn
	MaxCycles int `yaml:"max_cycles" example:"6" validate:"gte=1,lte=32"`
	// Attempts for the decision call when the output is malformed
	DecisionAttempts int `yaml:"decision_attempts" example:"2" validate:"gte=1,lte=5"`
	// Responder forced first when the user attaches an image
	VisionResponder string `yaml:"vision_responder" example:"vision" validate:"required"`
	// Responder forced after a restricted substance is mentioned
	SafetyResponder string `yaml:"safety_responder" example:"sustainability" validate:"required"`
	// Responders whose answers are scanned for restricted substances
	Authorities []string `yaml:"authorities" example:"[production, risk]"`
	// Number of persisted messages loaded at turn start
	HistoryLimit int `yaml:"history_limit" example:"10" validate:"gte=1"`
	// Timeout of a single responder activation
	ResponderTimeout time.Duration `yaml:"responder_timeout" example:"60s"`
}

type Responders struct {
	// Tool loop iteration cap
	MaxIterations int `yaml:"max_iterations" example:"8" validate:"gte=1,lte=16"`
	// Responders disabled for this deployment
	Disabled []string `yaml:"disabled"`
}

type Classifier struct {
	// Optional capability used to detect restricted substances, keyword list when empty
	Capability string `yaml:"capability" example:"classify_substances"`
}

type MCP struct {
	Servers []MCPServer `yaml:"servers" validate:"dive"`
}

type MCPServer struct {
	// Server name used in capability bindings
	Name string `yaml:"name" example:"weather" validate:"required"`
	// Command starting the stdio server
	Command string `yaml:"command" example:"docker" validate:"required"`
	// Command arguments
	Args []string `yaml:"args" example:"[run, --rm, -i, agro/weather-mcp]"`
	// Extra environment, KEY=VALUE
	Env []string `yaml:"env"`
}

type Capability struct {
	// Capability name from the catalog
	Name string `yaml:"name" example:"get_weather_forecast" validate:"required"`
	// MCP server providing it
	Server string `yaml:"server" example:"weather" validate:"required"`
	// Tool name on that server, defaults to Name
	Tool string `yaml:"tool" example:"forecast"`
}

type HTTP struct {
	// Listen address
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Maximum request body, bytes
	BodyLimit int `yaml:"body_limit" example:"10485760"`
}

type Storage struct {
	// Storage driver: file or sqlite
	Driver string `yaml:"driver" example:"sqlite" validate:"oneof=file sqlite"`
	// Directory for the file driver, database path for sqlite
	Path string `yaml:"path" example:"data/agrosmi.db" validate:"required"`
}

type KPI struct {
	// Directory for JSONL event logs, disabled when empty
	Dir string `yaml:"dir" example:"logs"`
	// Event buffer size
	Buffer int `yaml:"buffer" example:"256" validate:"gte=1"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// Load reads the file named by AGROSMI_CONFIG, or config.yaml.
func Load() (*Config, error) {
	path := os.Getenv("AGROSMI_CONFIG")
	if path == "" {
		path = defaultPath
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.With("path", path).Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.With("path", path).Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.With("path", path).Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.HTTP.BodyLimit == 0 {
		c.HTTP.BodyLimit = 10 * 1024 * 1024
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		if c.Storage.Driver == "sqlite" {
			c.Storage.Path = "data/agrosmi.db"
		} else {
			c.Storage.Path = "data/history"
		}
	}
	if c.KPI.Buffer == 0 {
		c.KPI.Buffer = 256
	}

	defaultModel(&c.LLM.Decision)
	defaultModel(&c.LLM.Responder)
	if c.LLM.Vision != nil {
		defaultModel(c.LLM.Vision)
	}
	for id, m := range c.LLM.Overrides {
		defaultModel(&m)
		c.LLM.Overrides[id] = m
	}

	o := &c.Orchestrator
	if o.MaxCycles == 0 {
		o.MaxCycles = 6
	}
	if o.DecisionAttempts == 0 {
		o.DecisionAttempts = 2
	}
	if o.VisionResponder == "" {
		o.VisionResponder = "vision"
	}
	if o.SafetyResponder == "" {
		o.SafetyResponder = "sustainability"
	}
	if o.Authorities == nil {
		o.Authorities = []string{"production", "risk"}
	}
	if o.HistoryLimit == 0 {
		o.HistoryLimit = 10
	}
	if o.ResponderTimeout == 0 {
		o.ResponderTimeout = 90 * time.Second
	}

	if c.Responders.MaxIterations == 0 {
		c.Responders.MaxIterations = 8
	}

	for i := range c.Capabilities {
		if c.Capabilities[i].Tool == "" {
			c.Capabilities[i].Tool = c.Capabilities[i].Name
		}
	}
}

func defaultModel(m *ModelConfig) {
	if m.Provider == "" {
		m.Provider = "openai"
	}
	if m.Timeout == 0 {
		m.Timeout = 30 * time.Second
	}
}

// ModelFor returns the model configuration of a responder.
func (c *Config) ModelFor(responderID string) ModelConfig {
	if m, ok := c.LLM.Overrides[responderID]; ok {
		return m
	}
	if responderID == c.Orchestrator.VisionResponder && c.LLM.Vision != nil {
		return *c.LLM.Vision
	}

	return c.LLM.Responder
}
