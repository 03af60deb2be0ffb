package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Encoding EncodingConfig
	OpenAI   OpenAIConfig
	Workflow WorkflowConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/newtube?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the thumbnails bucket.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ThumbnailsBucket string
}

// EncodingConfig holds the video encoding provider settings. The provider
// ingests direct uploads, encodes asynchronously and notifies us through
// signed webhooks.
type EncodingConfig struct {
	APIBaseURL    string // e.g. https://api.mux.com
	ImageBaseURL  string // e.g. https://image.mux.com (thumbnail/preview derivation)
	StreamBaseURL string // e.g. https://stream.mux.com (transcript text tracks)
	TokenID       string
	TokenSecret   string
	WebhookSecret string
	CORSOrigin    string // origin allowed to PUT to the direct upload URL
	TimeoutSec    int
}

// OpenAIConfig holds generative AI service settings.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	ImageSize  string
	TimeoutSec int
}

// WorkflowConfig holds step orchestrator retry and retention settings.
type WorkflowConfig struct {
	MaxAttempts    int
	BackoffSeconds int
	StepTTLHours   int // retention of recorded step results in Redis
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 120),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/newtube?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "newtube"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ThumbnailsBucket: getEnv("AWS_S3_THUMBNAILS_BUCKET", "newtube-thumbnails"),
		},
		Encoding: EncodingConfig{
			APIBaseURL:    getEnv("ENCODING_API_BASE_URL", "https://api.mux.com"),
			ImageBaseURL:  getEnv("ENCODING_IMAGE_BASE_URL", "https://image.mux.com"),
			StreamBaseURL: getEnv("ENCODING_STREAM_BASE_URL", "https://stream.mux.com"),
			TokenID:       getEnv("ENCODING_TOKEN_ID", ""),
			TokenSecret:   getEnv("ENCODING_TOKEN_SECRET", ""),
			WebhookSecret: getEnv("ENCODING_WEBHOOK_SECRET", ""),
			CORSOrigin:    getEnv("ENCODING_UPLOAD_CORS_ORIGIN", "*"),
			TimeoutSec:    getEnvInt("ENCODING_TIMEOUT_SEC", 30),
		},
		OpenAI: OpenAIConfig{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			TextModel:  getEnv("OPENAI_TEXT_MODEL", "gpt-4.1"),
			ImageModel: getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
			ImageSize:  getEnv("OPENAI_IMAGE_SIZE", "1792x1024"),
			TimeoutSec: getEnvInt("OPENAI_TIMEOUT_SEC", 120),
		},
		Workflow: WorkflowConfig{
			MaxAttempts:    getEnvInt("WORKFLOW_MAX_ATTEMPTS", 3),
			BackoffSeconds: getEnvInt("WORKFLOW_BACKOFF_SEC", 2),
			StepTTLHours:   getEnvInt("WORKFLOW_STEP_TTL_HOURS", 24),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
