package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Email     EmailConfig
	Weather   WeatherConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	RunWorker          bool   // run the notification worker in-process
}

// StoreConfig selects the single-table backend.
type StoreConfig struct {
	Driver   string
	Table    string
	Endpoint string // DynamoDB endpoint override, e.g. http://localhost:8000
}

// DatabaseConfig holds PostgreSQL settings for the postgres store driver.
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MaxIdleMins int
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// notification emails.
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

// AWSConfig holds AWS credentials and the S3 bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PhotosBucket         string
	S3Endpoint           string
	PresignExpireMinutes int
}

// EmailConfig for SMTP.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// WeatherConfig holds Open-Meteo endpoints.
type WeatherConfig struct {
	Enabled      bool
	GeocodingURL string
	ForecastURL  string
	Timeout      time.Duration
}

// RateLimitConfig bounds requests per client IP on the auth routes.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			RunWorker:          getEnvBool("RUN_WORKER", false),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDynamoDB)),
			Table:    getEnv("DYNAMODB_TABLE", "photocomp"),
			Endpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", "postgres://localhost:5432/photocomp?sslmode=disable"),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 10),
			MaxIdleMins: getEnvInt("DB_MAX_IDLE_MINUTES", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PhotosBucket:         getEnv("S3_BUCKET_NAME", "photocomp-photos"),
			S3Endpoint:           getEnv("S3_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@photocomp.local"),
			FromName:    getEnv("EMAIL_FROM_NAME", "PhotoComp"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Weather: WeatherConfig{
			Enabled:      getEnvBool("WEATHER_ENABLED", true),
			GeocodingURL: getEnv("WEATHER_GEOCODING_URL", ""),
			ForecastURL:  getEnv("WEATHER_FORECAST_URL", ""),
			Timeout:      time.Duration(getEnvInt("WEATHER_TIMEOUT_SEC", 5)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvFloat("AUTH_RATE_LIMIT_PER_SEC", 5),
			Burst:     getEnvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Store.Driver {
	case StoreDynamoDB, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.JWT.ExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
	}
	return nil
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
