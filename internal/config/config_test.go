package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesEnvAndDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://env.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 60*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 70, cfg.Recommend.MinReputation)
	assert.Equal(t, 10, cfg.Recommend.Limit)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8081"
  env: production
llm:
  model: openai/gpt-4o-mini
rate_limit:
  max_calls_per_minute: 120
`), 0o644))

	t.Setenv("PORT", "8082")
	t.Setenv("OPENROUTER_MODEL", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Server.Port, "env wins over file")
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model, "empty env leaves file value")
	assert.Equal(t, 120, cfg.RateLimit.MaxCallsPerMinute)
}

func TestLoadConfig_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
