package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	t.Setenv("TEST_FLOAT_1", "0.25")
	t.Setenv("TEST_FLOAT_2", "warm")

	assert.InDelta(t, 0.25, getEnvAsFloatOrDefault("TEST_FLOAT_1", 0.7), 1e-6)
	assert.InDelta(t, 0.7, getEnvAsFloatOrDefault("TEST_FLOAT_2", 0.7), 1e-6)
	assert.InDelta(t, 0.7, getEnvAsFloatOrDefault("TEST_FLOAT_UNSET", 0.7), 1e-6)
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	t.Setenv("TEST_DUR_1", "45s")
	t.Setenv("TEST_DUR_2", "soon")

	assert.Equal(t, 45*time.Second, getEnvAsDurationOrDefault("TEST_DUR_1", 0))
	assert.Equal(t, time.Minute, getEnvAsDurationOrDefault("TEST_DUR_2", time.Minute))
}

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty dir so a developer's .env does not leak in.
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "LLM_PROVIDER", "HISTORY_WINDOW", "API_KEY_ENV", "TEMPERATURE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ProviderDeepSeek, cfg.Provider)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Equal(t, "DEEPSEEK_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.InDelta(t, 0.95, cfg.TopP, 1e-6)
	assert.InDelta(t, 0.5, cfg.FrequencyPenalty, 1e-6)
	assert.InDelta(t, 0.5, cfg.PresencePenalty, 1e-6)
	assert.Zero(t, cfg.UpstreamTimeout)
}

func TestLoad_GeminiUsesGeminiKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("API_KEY_ENV", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "GEMINI_API_KEY", cfg.APIKeyEnv)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.env")
	require.NoError(t, os.WriteFile(path, []byte("HISTORY_WINDOW_FILE_TEST=4\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HISTORY_WINDOW_FILE_TEST") })

	_, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "4", os.Getenv("HISTORY_WINDOW_FILE_TEST"))

	_, err = Load(filepath.Join(dir, "missing.env"))
	require.Error(t, err)
}

func TestAPIKey_ReadAtCallTime(t *testing.T) {
	cfg := &Config{APIKeyEnv: "TEST_RELAY_KEY"}
	t.Setenv("TEST_RELAY_KEY", "")
	assert.Empty(t, cfg.APIKey())

	t.Setenv("TEST_RELAY_KEY", "sk-rotated")
	assert.Equal(t, "sk-rotated", cfg.APIKey())
}
