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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
genai:
  api_key: test-key
workers:
  compatibility:
    enabled: true
    cache_ttl: 120
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "vibe-workers", cfg.App.Name)
	assert.Equal(t, "gemini-1.5-flash", cfg.GenAI.Model)
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, 500, cfg.Generation.BackoffBase)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.False(t, cfg.Cache.Enabled())

	worker := cfg.Workers["compatibility"]
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTLFor("compatibility"))
	assert.Equal(t, time.Hour, cfg.CacheTTLFor("summarize-text"))
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "")
	t.Setenv("TEST_GENAI_KEY", "from-env")
	t.Setenv("TEST_REDIS_ADDR", "localhost:6379")
	path := writeConfig(t, `
genai:
  api_key: ${TEST_GENAI_KEY}
cache:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GenAI.APIKey)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Address)
	assert.True(t, cfg.Cache.Enabled())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing api key",
			body:    "app:\n  name: x\n",
			wantErr: "genai.api_key is required",
		},
		{
			name:    "camunda enabled without broker",
			body:    "genai:\n  api_key: k\ncamunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "backoff max below base",
			body:    "genai:\n  api_key: k\ngeneration:\n  backoff_base: 1000\n  backoff_max: 10\n",
			wantErr: "generation.backoff_max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GENAI_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenAIConfig_Models(t *testing.T) {
	g := GenAIConfig{Model: "a", FallbackModels: []string{"b", "a", "", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, g.Models())
}

func TestGenAIConfig_StringHidesKey(t *testing.T) {
	g := GenAIConfig{APIKey: "super-secret", Model: "m"}
	assert.NotContains(t, g.String(), "super-secret")
}
