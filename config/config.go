package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Storage  StorageConfig
	Email    EmailConfig
	Events   EventsConfig
	Revenue  RevenueConfig
	Locale   LocaleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	// PublicURL is the externally visible base URL, used in certificate verify links.
	PublicURL string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis:
// emails are sent inline and the live feed stays on one instance.
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

// AWSConfig holds AWS credentials and the S3 bucket for certificates, flyers and banners.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	FilesBucket          string
	PublicBaseURL        string
	PresignExpireMinutes int
}

// StorageConfig is the local file store used when no S3 bucket is set.
type StorageConfig struct {
	LocalDir     string
	LocalBaseURL string
}

// EmailConfig for the Brevo transactional API.
type EmailConfig struct {
	FromAddress string
	FromName    string
	BrevoAPIKey string
	TimeoutSec  int
}

// EventsConfig holds the check-in window and rendering settings.
type EventsConfig struct {
	Timezone              string
	CheckInOpensBeforeMin int
	DefaultDurationHours  int
	RenderTimeoutSec      int
}

// RevenueConfig splits paid revenue between platform and organizers.
type RevenueConfig struct {
	AdminShare float64
}

// LocaleConfig picks the fallback language of API messages and emails.
type LocaleConfig struct {
	Default string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// UseS3 reports whether files go to S3 rather than the local directory.
func (c AWSConfig) UseS3() bool { return c.FilesBucket != "" }

// Location loads the event timezone.
func (c EventsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("EVENT_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c EventsConfig) CheckInLead() time.Duration {
	return time.Duration(c.CheckInOpensBeforeMin) * time.Minute
}

func (c EventsConfig) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationHours) * time.Hour
}

func (c EventsConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
			PublicURL:          strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eduevent"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "ap-southeast-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			FilesBucket:          getEnv("AWS_S3_FILES_BUCKET", ""),
			PublicBaseURL:        getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Storage: StorageConfig{
			LocalDir:     getEnv("STORAGE_LOCAL_DIR", "./storage"),
			LocalBaseURL: getEnv("STORAGE_LOCAL_BASE_URL", "/files"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("MAIL_FROM_ADDRESS", "noreply@eduevent.id"),
			FromName:    getEnv("MAIL_FROM_NAME", "EduEvent"),
			BrevoAPIKey: getEnv("BREVO_API_KEY", ""),
			TimeoutSec:  getEnvInt("EMAIL_TIMEOUT_SEC", 10),
		},
		Events: EventsConfig{
			Timezone:              getEnv("EVENT_TIMEZONE", "Asia/Jakarta"),
			CheckInOpensBeforeMin: getEnvInt("CHECKIN_OPENS_BEFORE_MIN", 30),
			DefaultDurationHours:  getEnvInt("DEFAULT_EVENT_DURATION_HOURS", 8),
			RenderTimeoutSec:      getEnvInt("RENDER_TIMEOUT_SEC", 15),
		},
		Revenue: RevenueConfig{
			AdminShare: getEnvFloat("REVENUE_ADMIN_SHARE", 0.7),
		},
		Locale: LocaleConfig{
			Default: getEnv("DEFAULT_LOCALE", "id"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot work with.
func (c *Config) Validate() error {
	if _, err := c.Events.Location(); err != nil {
		return err
	}
	if c.Events.CheckInOpensBeforeMin < 0 {
		return fmt.Errorf("CHECKIN_OPENS_BEFORE_MIN must not be negative, got %d", c.Events.CheckInOpensBeforeMin)
	}
	if c.Events.DefaultDurationHours <= 0 {
		return fmt.Errorf("DEFAULT_EVENT_DURATION_HOURS must be positive, got %d", c.Events.DefaultDurationHours)
	}
	if c.Revenue.AdminShare < 0 || c.Revenue.AdminShare > 1 {
		return fmt.Errorf("REVENUE_ADMIN_SHARE must be within [0, 1], got %v", c.Revenue.AdminShare)
	}
	switch c.Locale.Default {
	case "id", "en":
	default:
		return fmt.Errorf("DEFAULT_LOCALE must be id or en, got %q", c.Locale.Default)
	}
	return nil
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

// SplitTrim splits a comma-separated setting, dropping blanks.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
