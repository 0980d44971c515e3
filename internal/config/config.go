package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingToken is the only fatal startup condition for the bot.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN is required")

type Config struct {
	// Telegram settings
	TelegramToken   string
	TelegramAPIID   string // optional extended-search credentials
	TelegramAPIHash string
	TelegramAPIURL  string
	PollTimeout     time.Duration
	MessageLimit    int

	// Translation settings
	GeminiAPIKey     string
	OpenAIAPIKey     string
	MaxAIRequests    int // daily budget for LLM translation calls (0 = unlimited)
	SpellerEnabled   bool
	TranslateTimeout time.Duration

	// Fetch settings
	FetchTimeout time.Duration
	SurfaceRPS   float64
	UserAgent    string

	// Catalog
	CatalogPath string

	// Cache settings
	CacheTTL time.Duration
	RedisURL string

	// App settings
	Debug          bool
	EnableHTTP     bool
	MonitoringPort string
	RetryAttempts  int
	RetryDelay     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		TelegramAPIURL: "https://api.telegram.org",
		PollTimeout:    30 * time.Second,
		MessageLimit:   4000,
		MaxAIRequests:  200,
		SpellerEnabled: true,
		RetryAttempts:  3,
		RetryDelay:     time.Second,
		MonitoringPort: "8080",
	}

	// BOT_TOKEN is the name older deployments used
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = os.Getenv("BOT_TOKEN")
	}
	cfg.TelegramAPIID = getEnvOrDefault("TELEGRAM_API_ID", os.Getenv("API_ID"))
	cfg.TelegramAPIHash = getEnvOrDefault("TELEGRAM_API_HASH", os.Getenv("API_HASH"))
	cfg.TelegramAPIURL = getEnvOrDefault("TELEGRAM_API_URL", cfg.TelegramAPIURL)
	cfg.PollTimeout = time.Duration(getEnvIntOrDefault("POLL_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.MessageLimit = getEnvIntOrDefault("MESSAGE_LIMIT", cfg.MessageLimit)

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.MaxAIRequests = getEnvIntOrDefault("MAX_AI_REQUESTS", cfg.MaxAIRequests)
	if v := os.Getenv("SPELLER_ENABLED"); v != "" {
		cfg.SpellerEnabled = v == "true" || v == "1"
	}
	cfg.TranslateTimeout = time.Duration(getEnvIntOrDefault("TRANSLATE_TIMEOUT_SECONDS", 5)) * time.Second

	cfg.FetchTimeout = time.Duration(getEnvIntOrDefault("FETCH_TIMEOUT_SECONDS", 15)) * time.Second
	cfg.SurfaceRPS = 1
	if v := os.Getenv("SURFACE_RPS"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.SurfaceRPS = val
		}
	}
	cfg.UserAgent = os.Getenv("USER_AGENT")

	cfg.CatalogPath = os.Getenv("CATALOG_PATH")

	cfg.CacheTTL = time.Duration(getEnvIntOrDefault("CACHE_TTL_SECONDS", 300)) * time.Second
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	cfg.EnableHTTP = os.Getenv("ENABLE_HTTP_MONITORING") == "true"
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)

	return cfg, cfg.Validate()
}

// HasExtendedSearch reports whether both extended-search credentials are set.
func (c *Config) HasExtendedSearch() bool {
	return c.TelegramAPIID != "" && c.TelegramAPIHash != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 || c.FetchTimeout > time.Minute {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be between 1 and 60")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if c.MessageLimit < 500 || c.MessageLimit > 4096 {
		return fmt.Errorf("MESSAGE_LIMIT must be between 500 and 4096")
	}
	if (c.TelegramAPIID == "") != (c.TelegramAPIHash == "") {
		return fmt.Errorf("TELEGRAM_API_ID and TELEGRAM_API_HASH must be set together")
	}
	if c.TelegramToken == "" {
		return ErrMissingToken
	}
	return nil
}
