package store

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendBadger = "BADGER"
	BackendMongo  = "MONGO"
)

type Config struct {
	Server struct {
		Addr                string `yaml:"addr"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
		MaxUploadMB         int64  `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Storage struct {
		Backend       string `yaml:"backend"`
		BadgerPath    string `yaml:"badger_path"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
	} `yaml:"storage"`
	LLM struct {
		Provider       string  `yaml:"provider"`
		Model          string  `yaml:"model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		Endpoint       string  `yaml:"endpoint"`
	} `yaml:"llm"`
	Assets struct {
		MaxDimension       int `yaml:"max_dimension"`
		MaxPixels          int `yaml:"max_pixels"`
		JPEGQuality        int `yaml:"jpeg_quality"`
		DocumentCharBudget int `yaml:"document_char_budget"`
	} `yaml:"assets"`
	References struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
		CharBudget     int `yaml:"char_budget"`
		Concurrency    int `yaml:"concurrency"`
	} `yaml:"references"`
	Summary struct {
		MaxChars int `yaml:"max_chars"`
	} `yaml:"summary"`
	Journal struct {
		Enabled       bool   `yaml:"enabled"`
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

func (c *Config) Validate() error {
	if c.Storage.Backend != BackendBadger && c.Storage.Backend != BackendMongo {
		return fmt.Errorf("invalid storage.backend '%s': must be 'BADGER' or 'MONGO'", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendMongo && c.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri (or MONGO_URI) is required for the MONGO backend")
	}
	switch c.LLM.Provider {
	case "OPENAI", "CLAUDE", "GEMINI", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'OPENAI', 'CLAUDE', 'GEMINI' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0-2, got %.2f", c.LLM.Temperature)
	}
	if c.Assets.JPEGQuality < 1 || c.Assets.JPEGQuality > 100 {
		return fmt.Errorf("assets.jpeg_quality must be between 1-100, got %d", c.Assets.JPEGQuality)
	}
	if c.Summary.MaxChars > 200 {
		return fmt.Errorf("summary.max_chars cannot exceed 200, got %d", c.Summary.MaxChars)
	}
	return nil
}

// Defaults returns a config populated with the built-in defaults.
func Defaults() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 30
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 120
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 32
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendBadger
	}
	c.Storage.Backend = strings.ToUpper(c.Storage.Backend)
	if c.Storage.BadgerPath == "" {
		c.Storage.BadgerPath = "data/contexts"
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Storage.MongoURI = v
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = "trade_app"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "OPENAI"
	}
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel(c.LLM.Provider)
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Assets.MaxDimension == 0 {
		c.Assets.MaxDimension = 1024
	}
	if c.Assets.MaxPixels == 0 {
		c.Assets.MaxPixels = 50_000_000
	}
	if c.Assets.JPEGQuality == 0 {
		c.Assets.JPEGQuality = 85
	}
	if c.Assets.DocumentCharBudget == 0 {
		c.Assets.DocumentCharBudget = 4000
	}
	if c.References.TimeoutSeconds == 0 {
		c.References.TimeoutSeconds = 5
	}
	if c.References.CharBudget == 0 {
		c.References.CharBudget = 2000
	}
	if c.References.Concurrency == 0 {
		c.References.Concurrency = 4
	}
	if c.Summary.MaxChars == 0 {
		c.Summary.MaxChars = 200
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs/decisions"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "CLAUDE":
		return "claude-sonnet-4-5"
	case "GEMINI":
		return "gemini-2.5-flash"
	case "NOOP":
		return "noop"
	default:
		return "gpt-4o-mini"
	}
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML bytes, applies defaults and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
