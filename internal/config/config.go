package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every service setting.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	AI        AIConfig
	Twilio    TwilioConfig
	Session   SessionConfig
	Dialogue  DialogueConfig
	Analytics AnalyticsConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"3000"`
	// PublicBaseURL is the externally visible origin Twilio signs requests against.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	Addr          string
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// AIConfig describes the language backend.
type AIConfig struct {
	Provider     string        `env:"LLM_PROVIDER" envDefault:"ark"`
	APIKey       string        `env:"ARK_API_KEY"`
	AccessKey    string        `env:"ARK_ACCESS_KEY"`
	SecretKey    string        `env:"ARK_SECRET_KEY"`
	Model        string        `env:"ARK_MODEL"`
	BaseURL      string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region       string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	Temperature  float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens    int           `env:"LLM_MAX_TOKENS" envDefault:"200"`
	Timeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"10s"`
}

// TwilioConfig controls webhook validation and speech rendering.
type TwilioConfig struct {
	AuthToken string `env:"TWILIO_AUTH_TOKEN"`
	Voice     string `env:"TWILIO_VOICE" envDefault:"Polly.Carmen-Neural"`
	Language  string `env:"TWILIO_LANGUAGE" envDefault:"ro-RO"`
}

// ValidateSignatures reports whether inbound webhooks must carry a valid X-Twilio-Signature.
func (c TwilioConfig) ValidateSignatures() bool {
	return c.AuthToken != ""
}

// SessionConfig controls the session store lifecycle.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	RedisURL      string        `env:"REDIS_URL"`
}

// MaxHistoryLimit is the most conversation turns a backend request carries.
const MaxHistoryLimit = 10

// DialogueConfig tunes the call state machine.
type DialogueConfig struct {
	HistoryLimit        int  `env:"HISTORY_LIMIT" envDefault:"10"`
	MenuMaxRetries      int  `env:"MENU_MAX_RETRIES" envDefault:"0"`
	PersonaRefreshDaily bool `env:"PERSONA_REFRESH_DAILY" envDefault:"false"`
}

// AnalyticsConfig locates the call log.
type AnalyticsConfig struct {
	DBPath    string `env:"ANALYTICS_DB_PATH" envDefault:"data/onevoice.db"`
	QueueSize int    `env:"ANALYTICS_QUEUE_SIZE" envDefault:"256"`
}

func (c *Config) normalize() error {
	port := strings.TrimSpace(c.Server.Port)
	switch {
	case port == "":
		c.Server.Addr = ":3000"
	case strings.Contains(port, " "):
		return fmt.Errorf("invalid PORT value: %q", port)
	case strings.Contains(port, ":"):
		// accept ":8080" or "127.0.0.1:8080" as given
		c.Server.Addr = port
	default:
		c.Server.Addr = ":" + port
	}
	c.Server.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicBaseURL), "/")

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case "ark", "gemini":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER: must be 'ark' or 'gemini', got %q", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("invalid LLM_TIMEOUT: %s", c.AI.Timeout)
	}

	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session ttl and sweep interval must be positive")
	}
	if c.Dialogue.HistoryLimit < 1 {
		c.Dialogue.HistoryLimit = 1
	}
	if c.Dialogue.HistoryLimit > MaxHistoryLimit {
		c.Dialogue.HistoryLimit = MaxHistoryLimit
	}
	if c.Dialogue.MenuMaxRetries < 0 {
		return fmt.Errorf("invalid MENU_MAX_RETRIES: %d", c.Dialogue.MenuMaxRetries)
	}
	if c.Analytics.QueueSize < 1 {
		c.Analytics.QueueSize = 1
	}
	return nil
}

// Enabled reports whether the configured provider has credentials.
func (c AIConfig) Enabled() bool {
	if c.Provider == "gemini" {
		return c.GeminiAPIKey != ""
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != "ark" || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}
