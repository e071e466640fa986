// Package config provides configuration management for astrachat.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for settings not present in the config file or environment.
const (
	DefaultPort           = 3002
	DefaultMCPURL         = "https://mcp.api-inference.modelscope.net/star/mcp"
	DefaultModelEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel          = "qwen/qwen3-235b-a22b-2507"
	DefaultAttemptTimeout = 8 * time.Second
	DefaultOverallBudget  = 15 * time.Second
	DefaultSessionTTL     = time.Hour
	DefaultContextTTL     = 24 * time.Hour
	DefaultSweepInterval  = time.Hour
	DefaultMaxTurns       = 10
)

// Config holds runtime settings for the service.
type Config struct {
	Port int `yaml:"port"`

	// Remote MCP capability.
	MCPURL      string `yaml:"mcp_url"`
	MCPAPIKey   string `yaml:"mcp_api_key"`
	MCPCommand  string `yaml:"mcp_command"` // subprocess-pipe transport, e.g. "npx star-mcp"
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	OverallBudget  time.Duration `yaml:"overall_budget"`

	// Model-backed resolver; disabled when the key is empty.
	ModelEndpoint string        `yaml:"model_endpoint"`
	ModelAPIKey   string        `yaml:"model_api_key"`
	Model         string        `yaml:"model"`
	ModelTimeout  time.Duration `yaml:"model_timeout"`

	// Session store.
	SessionTTL    time.Duration `yaml:"session_ttl"`
	ContextTTL    time.Duration `yaml:"context_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxTurns      int           `yaml:"max_turns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		MCPURL:         DefaultMCPURL,
		AttemptTimeout: DefaultAttemptTimeout,
		OverallBudget:  DefaultOverallBudget,
		ModelEndpoint:  DefaultModelEndpoint,
		Model:          DefaultModel,
		ModelTimeout:   DefaultAttemptTimeout,
		SessionTTL:     DefaultSessionTTL,
		ContextTTL:     DefaultContextTTL,
		SweepInterval:  DefaultSweepInterval,
		MaxTurns:       DefaultMaxTurns,
	}
}

// Load reads the YAML config file at path (missing file is not an error) and
// applies environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults + env only.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("STAR_MCP_URL"); v != "" {
		cfg.MCPURL = v
	}
	if v := os.Getenv("MODELSCOPE_API_KEY"); v != "" {
		cfg.MCPAPIKey = v
	}
	if v := os.Getenv("STAR_MCP_COMMAND"); v != "" {
		cfg.MCPCommand = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.ModelAPIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AI_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.ModelTimeout = time.Duration(ms) * time.Millisecond
		}
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.OverallBudget < c.AttemptTimeout {
		c.OverallBudget = DefaultOverallBudget
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	return nil
}

// ModelEnabled reports whether the model-backed resolver is configured.
func (c *Config) ModelEnabled() bool {
	return c.ModelAPIKey != ""
}
