// Package config loads process configuration from the environment and an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// LLM (any OpenAI-compatible chat completions endpoint)
	ClaudeAPIKey string  `env:"CLAUDE_API_KEY"`
	LLMBaseURL   string  `env:"LLM_BASE_URL" envDefault:"https://api.anthropic.com/v1/"`
	LLMModel     string  `env:"LLM_MODEL" envDefault:"claude-3-sonnet-20240229"`
	LLMMaxTokens int64   `env:"LLM_MAX_TOKENS" envDefault:"300"`
	LLMTemp      float64 `env:"LLM_TEMPERATURE" envDefault:"0"`

	// SQL
	SQLiteDB string `env:"SQLITE_DB" envDefault:"sqlite.db"`
	DataDir  string `env:"DATA_DIR" envDefault:"data"`

	// Gmail
	ClientSecretFile string  `env:"GMAIL_CLIENT_SECRET" envDefault:"client-secret.json"`
	TokenDir         string  `env:"TOKEN_DIR" envDefault:"token files"`
	TokenPrefix      string  `env:"TOKEN_PREFIX"`
	GmailRateLimit   float64 `env:"GMAIL_RATE_LIMIT" envDefault:"0"` // requests per second, 0 disables

	// Tools
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// Dashboard
	DashboardAddr string `env:"DASHBOARD_ADDR" envDefault:"127.0.0.1:8050"`
	OpenBrowser   bool   `env:"OPEN_BROWSER" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// LLMConfigured reports whether an API key for the language model is set.
func (c *Config) LLMConfigured() bool {
	return c.ClaudeAPIKey != ""
}

// ResultCSVPath is where the latest query result is exported for the dashboard.
func (c *Config) ResultCSVPath() string {
	return filepath.Join(c.DataDir, "last_result.csv")
}

// ResponseTextPath is where the latest SQL and result preview are exported.
func (c *Config) ResponseTextPath() string {
	return filepath.Join(c.DataDir, "last_response.txt")
}

// PlotPath is where show_plot writes its standalone chart page.
func (c *Config) PlotPath() string {
	return filepath.Join(c.DataDir, "last_plot.html")
}

// Validate checks values env.Parse cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLMMaxTokens))
	}
	if c.LLMTemp < 0 || c.LLMTemp > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %g", c.LLMTemp))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.GmailRateLimit < 0 {
		errs = append(errs, fmt.Errorf("GMAIL_RATE_LIMIT must not be negative, got %g", c.GmailRateLimit))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR must not be empty"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the current environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
