package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Upstream
	Provider        string
	BaseURL         string
	Model           string
	APIKeyEnv       string
	GeminiModel     string
	UpstreamTimeout time.Duration

	// Relay policy
	HistoryWindow    int
	Temperature      float32
	MaxTokens        int
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
	SystemPromptFile string

	// Frontend
	FrontendURL string
}

// Load reads the process environment, after merging envFile (or ./.env when
// envFile is empty) if it exists.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		godotenv.Load()
	}

	provider := getEnvOrDefault("LLM_PROVIDER", ProviderDeepSeek)
	defaultKeyEnv := "DEEPSEEK_API_KEY"
	if provider == ProviderGemini {
		defaultKeyEnv = "GEMINI_API_KEY"
	}

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "3000"),
		Env:              getEnvOrDefault("ENV", "development"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Provider:         provider,
		BaseURL:          getEnvOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		Model:            getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		APIKeyEnv:        getEnvOrDefault("API_KEY_ENV", defaultKeyEnv),
		GeminiModel:      getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		UpstreamTimeout:  getEnvAsDurationOrDefault("UPSTREAM_TIMEOUT", 0),
		HistoryWindow:    getEnvAsIntOrDefault("HISTORY_WINDOW", 10),
		Temperature:      getEnvAsFloatOrDefault("TEMPERATURE", 0.7),
		MaxTokens:        getEnvAsIntOrDefault("MAX_TOKENS", 2000),
		TopP:             getEnvAsFloatOrDefault("TOP_P", 0.95),
		FrequencyPenalty: getEnvAsFloatOrDefault("FREQUENCY_PENALTY", 0.5),
		PresencePenalty:  getEnvAsFloatOrDefault("PRESENCE_PENALTY", 0.5),
		SystemPromptFile: getEnvOrDefault("SYSTEM_PROMPT_FILE", ""),
		FrontendURL:      getEnvOrDefault("FRONTEND_URL", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderDeepSeek, ProviderGemini:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("HISTORY_WINDOW must not be negative, got %d", c.HistoryWindow)
	}
	if c.APIKeyEnv == "" {
		return fmt.Errorf("API_KEY_ENV must name an environment variable")
	}
	return nil
}

// APIKey returns the upstream credential. It is read on every call so a
// rotated secret takes effect without a restart.
func (c *Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float32) float32 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return defaultVal
	}
	return float32(f)
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
