package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers understood by LoadConfig.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisAddr   string
	RedisDB     int
	JWTSecret   string
	// AuthRequired rejects job requests that carry no bearer token.
	AuthRequired bool

	PromptProvider string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAIOrg      string

	VideoAPIKey        string
	VideoBaseURL       string
	VideoAPIVersion    string
	VideoModel         string
	VideoSubmitTimeout time.Duration
	VideoStatusTimeout time.Duration
	// VideoCallbackSecret, when set, is the HMAC-SHA256 key provider
	// callbacks must be signed with.
	VideoCallbackSecret string

	PollInterval    time.Duration
	PollMaxAttempts int
	SweepSchedule   string
	SweepStaleAfter time.Duration
	SweepBatchSize  int
	EmbeddedSweeper bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "generation.db"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		PromptProvider: strings.ToLower(getEnv("PROMPT_PROVIDER", "openai")),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:      os.Getenv("OPENAI_ORG"),

		VideoAPIKey:        os.Getenv("VIDEO_API_KEY"),
		VideoBaseURL:       getEnv("VIDEO_BASE_URL", "https://api.dev.runwayml.com"),
		VideoAPIVersion:    getEnv("VIDEO_API_VERSION", "2024-11-06"),
		VideoModel:         getEnv("VIDEO_MODEL", "veo3.1"),
		VideoSubmitTimeout: time.Second * time.Duration(getEnvInt("VIDEO_SUBMIT_TIMEOUT_SECONDS", 20)),
		VideoStatusTimeout: time.Second * time.Duration(getEnvInt("VIDEO_STATUS_TIMEOUT_SECONDS", 15)),

		VideoCallbackSecret: os.Getenv("VIDEO_CALLBACK_SECRET"),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 60),
		SweepSchedule:   getEnv("SWEEP_SCHEDULE", "@every 30s"),
		SweepStaleAfter: time.Second * time.Duration(getEnvInt("SWEEP_STALE_AFTER_SECONDS", 20)),
		SweepBatchSize:  getEnvInt("SWEEP_BATCH_SIZE", 50),
		EmbeddedSweeper: getEnvBool("EMBEDDED_SWEEPER", false),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.StoreDriver == "" {
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = StoreDriverPostgres
		} else {
			cfg.StoreDriver = StoreDriverSQLite
		}
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for store driver %q", cfg.StoreDriver)
		}
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.VideoAPIKey == "" {
		return nil, fmt.Errorf("VIDEO_API_KEY is required")
	}

	if cfg.AuthRequired && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_REQUIRED is set")
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
