package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

// DefaultEnvFile is the dotenv file read when ENV_FILE is unset
const DefaultEnvFile = ".env"

// ErrMissingAPIKey is returned when the model credential is not configured
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for comment analysis")

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	AITimeout        time.Duration
	BatchSize        int
	MaxCommentChars  int
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	RateLimit        string
	MaxUploadBytes   int64
	AuthJWKSURL      string
	AuthJWTSecret    string
	AuthIssuer       string
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	LogFormat        string
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// EnvFilePath returns the dotenv file named by ENV_FILE, or DefaultEnvFile
func EnvFilePath() string {
	return getEnv("ENV_FILE", DefaultEnvFile)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := LoadDefaults()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing (analysis runs in the worker)")
	}

	return cfg, nil
}

// LoadDefaults reads the environment without enforcing the server/worker
// requirements. The CLI uses it for local runs.
func LoadDefaults() *Config {
	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		AITimeout:        getEnvDuration("AI_TIMEOUT", 60*time.Second),
		BatchSize:        getEnvInt("ANALYSIS_BATCH_SIZE", 5),
		MaxCommentChars:  getEnvInt("ANALYSIS_MAX_COMMENT_CHARS", 5000),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		RateLimit:        getEnv("RATE_LIMIT", "10-S"),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		AuthJWKSURL:      getEnv("AUTH_JWKS_URL", ""),
		AuthJWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
		AuthIssuer:       getEnv("AUTH_ISSUER", ""),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}
}

// ValidateAI checks the settings needed to talk to the model
func (c *Config) ValidateAI() error {
	if c.OpenAIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("ANALYSIS_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.MaxCommentChars < 1 {
		return fmt.Errorf("ANALYSIS_MAX_COMMENT_CHARS must be positive, got %d", c.MaxCommentChars)
	}
	return nil
}

// ValidateAuth checks that at least one token verification method is configured
func (c *Config) ValidateAuth() error {
	if c.AuthJWKSURL == "" && c.AuthJWTSecret == "" {
		return fmt.Errorf("one of AUTH_JWKS_URL or AUTH_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
