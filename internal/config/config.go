// Package config loads crowdpilot configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crowdpilot configuration.
type Config struct {
	// LLM collaborator settings
	LLM LLMConfig `yaml:"llm"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Campaign projection settings
	Campaign CampaignConfig `yaml:"campaign"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CampaignConfig configures the metrics calculator and population source.
type CampaignConfig struct {
	// PopulationPath points at a YAML population file. Empty means the
	// built-in sample population.
	PopulationPath string  `yaml:"population_path"`
	Cost           float64 `yaml:"cost"`
	TotalSize      int     `yaml:"total_size"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder, caller info
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 2 * time.Minute,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Campaign: CampaignConfig{
			Cost:      10000,
			TotalSize: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("CROWDPILOT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("CROWDPILOT_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if addr := os.Getenv("CROWDPILOT_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}
	if path := os.Getenv("CROWDPILOT_POPULATION"); path != "" {
		c.Campaign.PopulationPath = path
	}
	if cost := os.Getenv("CROWDPILOT_CAMPAIGN_COST"); cost != "" {
		if v, err := strconv.ParseFloat(cost, 64); err == nil && v > 0 {
			c.Campaign.Cost = v
		}
	}
	if level := os.Getenv("CROWDPILOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
