package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Logging    LoggingConfig
	Classifier ClassifierConfig
	Upload     UploadConfig
	Storage    StorageConfig
	Auth       AuthConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	Enabled            bool   // false selects the in-memory repository
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// ClassifierConfig holds the image scoring service configuration
type ClassifierConfig struct {
	URL         string
	Timeout     time.Duration
	MaxRetries  int
	Concurrency int
}

// UploadConfig bounds listing photo uploads
type UploadConfig struct {
	MaxFileBytes int64
	MaxFiles     int
}

// StorageConfig holds MinIO/S3 object storage configuration
type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	Region       string
	Bucket       string
	SignedURLTTL time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	Mode           string // "okta" or "dev"
	Issuer         string
	Audience       string
	ClientID       string
	ModeratorGroup string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			Enabled:            getEnvAsBool("PG_ENABLED", true),
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "real_estate"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8000),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Classifier: ClassifierConfig{
			URL:         strings.TrimRight(getEnv("CLASSIFIER_URL", "http://localhost:8001"), "/"),
			Timeout:     getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("CLASSIFIER_MAX_RETRIES", 3),
			Concurrency: getEnvAsInt("CLASSIFIER_CONCURRENCY", 4),
		},
		Upload: UploadConfig{
			MaxFileBytes: int64(getEnvAsInt("UPLOAD_MAX_FILE_BYTES", 10<<20)),
			MaxFiles:     getEnvAsInt("UPLOAD_MAX_FILES", 20),
		},
		Storage: StorageConfig{
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("S3_SECRET_KEY", ""),
			UseSSL:       getEnvAsBool("S3_USE_SSL", false),
			Region:       getEnv("S3_REGION", "us-east-1"),
			Bucket:       getEnv("S3_BUCKET", "listing-images"),
			SignedURLTTL: getEnvAsDuration("S3_SIGNED_URL_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			Mode:           strings.ToLower(getEnv("AUTH_MODE", "okta")),
			Issuer:         getEnv("OKTA_ISSUER", oktaIssuer(getEnv("OKTA_DOMAIN", ""))),
			Audience:       getEnv("OKTA_AUDIENCE", "api://default"),
			ClientID:       getEnv("OKTA_CLIENT_ID", ""),
			ModeratorGroup: getEnv("MODERATOR_GROUP", "moderators"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case "okta":
		if c.Auth.Issuer == "" {
			return fmt.Errorf("OKTA_ISSUER or OKTA_DOMAIN is required when AUTH_MODE=okta")
		}
	case "dev":
	default:
		return fmt.Errorf("unknown AUTH_MODE %q (expected okta or dev)", c.Auth.Mode)
	}
	if c.Classifier.Concurrency <= 0 {
		c.Classifier.Concurrency = 1
	}
	if c.Classifier.MaxRetries < 0 {
		c.Classifier.MaxRetries = 0
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = 20
	}
	if c.Upload.MaxFileBytes <= 0 {
		c.Upload.MaxFileBytes = 10 << 20
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// NewLogger builds the process logger described by the logging config
func (c LoggingConfig) NewLogger() *slog.Logger {
	level := new(slog.LevelVar)
	switch strings.ToLower(c.Level) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func oktaIssuer(domain string) string {
	if domain == "" {
		return ""
	}
	return "https://" + domain + "/oauth2/default"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid boolean value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("invalid duration value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}
