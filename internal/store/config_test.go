package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	cfg, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "OPENAI", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1024, cfg.Assets.MaxDimension)
	assert.Equal(t, 50_000_000, cfg.Assets.MaxPixels)
	assert.Equal(t, 85, cfg.Assets.JPEGQuality)
	assert.Equal(t, 5, cfg.References.TimeoutSeconds)
	assert.Equal(t, 2000, cfg.References.CharBudget)
	assert.Equal(t, 200, cfg.Summary.MaxChars)
}

func TestParseConfig_ProviderCaseInsensitive(t *testing.T) {
	cfg, err := ParseConfig([]byte("llm:\n  provider: claude\n"))
	require.NoError(t, err)
	assert.Equal(t, "CLAUDE", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
}

func TestParseConfig_Invalid(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "storage:\n  backend: sqlite\n"},
		{"mongo without uri", "storage:\n  backend: mongo\n"},
		{"unknown provider", "llm:\n  provider: local\n"},
		{"temperature out of range", "llm:\n  temperature: 3\n"},
		{"jpeg quality out of range", "assets:\n  jpeg_quality: 120\n"},
		{"summary too long", "summary:\n  max_chars: 500\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_MongoURIFromEnv(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := ParseConfig([]byte("storage:\n  backend: MONGO\n"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoURI)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: NOOP\njournal:\n  enabled: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "NOOP", cfg.LLM.Provider)
	assert.True(t, cfg.Journal.Enabled)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
