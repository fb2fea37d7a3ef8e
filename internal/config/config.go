package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all entityscout configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Crawl configuration
	Crawl CrawlConfig `yaml:"crawl"`

	// Pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Storage
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the inference client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// CrawlConfig configures search and page fetching.
type CrawlConfig struct {
	MaxSearchResults int    `yaml:"max_search_results"`
	ConcurrentFetch  int    `yaml:"concurrent_fetch"`
	UseBrowser       bool   `yaml:"use_browser"`
	UserAgent        string `yaml:"user_agent"`
	FetchTimeout     string `yaml:"fetch_timeout"`
	SearchTimeout    string `yaml:"search_timeout"`
}

// PipelineConfig configures the research loop.
type PipelineConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	MinEntityTarget int     `yaml:"min_entity_target"`
	MinCredibility  float64 `yaml:"min_credibility"`
	MinWordCount    int     `yaml:"min_word_count"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string   `yaml:"level"`  // debug, info, warn, error
	Format     string   `yaml:"format"` // json, text
	Debug      bool     `yaml:"debug"`
	Categories []string `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},
		Crawl: CrawlConfig{
			MaxSearchResults: 10,
			ConcurrentFetch:  5,
			UseBrowser:       true,
			FetchTimeout:     "60s",
			SearchTimeout:    "30s",
		},
		Pipeline: PipelineConfig{
			MaxRetries:      2,
			MinEntityTarget: 3,
			MinCredibility:  0.6,
			MinWordCount:    200,
		},
		Store: StoreConfig{
			DatabasePath: "data/entityscout.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist. Environment variables override file
// values.
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

// Save saves configuration to a YAML file.
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
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = key
	}

	if key := os.Getenv("SCOUT_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if provider := os.Getenv("SCOUT_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("SCOUT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("SCOUT_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if path := os.Getenv("SCOUT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if val := os.Getenv("SCOUT_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			c.Pipeline.MaxRetries = n
		}
	}
	if val := os.Getenv("SCOUT_MIN_ENTITIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.Pipeline.MinEntityTarget = n
		}
	}
	if val := os.Getenv("SCOUT_DEBUG"); val == "1" || val == "true" {
		c.Logging.Debug = true
	}
}

// LLMTimeout parses the LLM timeout string, returning a default on
// malformed input.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// FetchTimeout parses the fetch timeout string.
func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Crawl.FetchTimeout, 60*time.Second)
}

// SearchTimeout parses the search timeout string.
func (c *Config) SearchTimeout() time.Duration {
	return parseDuration(c.Crawl.SearchTimeout, 30*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
