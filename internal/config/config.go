// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const defaultSystemDirective = "You are a helpful, knowledgeable, and friendly AI assistant. " +
	"Provide accurate, informative, and engaging responses. " +
	"If you're unsure about something, acknowledge the uncertainty rather than guessing. " +
	"Format your responses using markdown when appropriate for better readability."

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	Development  bool          `env:"DEVELOPMENT" envDefault:"false"`

	// Persistence backend: memory | nats
	Backend      string `env:"BACKEND" envDefault:"memory"`
	NATSURL      string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSCAFile   string `env:"NATS_CA_FILE"`
	NATSCertFile string `env:"NATS_CERT_FILE"`
	NATSKeyFile  string `env:"NATS_KEY_FILE"`
	NATSToken    string `env:"NATS_TOKEN"`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"development-secret-change-in-production"`

	// LLM provider: openai | anthropic
	Provider        string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Completion tiers
	FreeModel        string  `env:"FREE_MODEL" envDefault:"gpt-4o-mini"`
	PremiumModel     string  `env:"PREMIUM_MODEL" envDefault:"gpt-4o"`
	FreeMaxTokens    int     `env:"FREE_MAX_TOKENS" envDefault:"1000"`
	PremiumMaxTokens int     `env:"PREMIUM_MAX_TOKENS" envDefault:"2000"`
	Temperature      float64 `env:"TEMPERATURE" envDefault:"0.7"`

	// Prompt assembly
	SystemDirective   string `env:"SYSTEM_DIRECTIVE"`
	PromptTokenBudget int    `env:"PROMPT_TOKEN_BUDGET" envDefault:"3000"`

	// Credits
	MonthlyCredits int `env:"MONTHLY_CREDITS" envDefault:"50"`

	// Rate limiting
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from the environment, first folding in a
// local .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.SystemDirective == "" {
		cfg.SystemDirective = defaultSystemDirective
	}

	return cfg, nil
}
