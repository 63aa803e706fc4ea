package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Addr                    string
	BaseURL                 string
	DatabaseURL             string
	DBConnectTimeout        time.Duration
	MigrationsDir           string
	JWTSecret               string
	DataEncryptionKey       string
	FrontendDir             string
	Environment             string
	LogLevel                string
	SeedTenantName          string
	SeedAdminEmail          string
	SeedAdminPassword       string
	SeedSystemAdminEmail    string
	SeedSystemAdminPassword string
	SeedSalaryLevels        bool
	EmailFrom               string
	EmailEnabled            bool
	SMTPHost                string
	SMTPPort                int
	SMTPUser                string
	SMTPPassword            string
	SMTPUseTLS              bool
	StorageDriver           string
	StorageDir              string
	S3Endpoint              string
	S3AccessKey             string
	S3SecretKey             string
	S3Bucket                string
	S3UseSSL                bool
	MaxUploadBytes          int64
	RunMigrations           bool
	RunSeed                 bool
	MaxBodyBytes            int64
	RateLimitPerMinute      int
	ReminderInterval        time.Duration
	ReminderLookahead       time.Duration
	MetricsEnabled          bool

	malformed []error
}

// Load reads an optional .env file and then the process environment.
// Unset variables take their defaults; unparsable ones are reported by
// Validate.
func Load() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("env file load failed", "file", envFile, "err", err)
	}

	var e env
	cfg := Config{
		Addr:                    e.str("APP_ADDR", ":8080"),
		BaseURL:                 e.str("APP_BASE_URL", "http://localhost:8080"),
		DatabaseURL:             e.str("DATABASE_URL", ""),
		DBConnectTimeout:        e.duration("DB_CONNECT_TIMEOUT", 30*time.Second),
		MigrationsDir:           e.str("MIGRATIONS_DIR", "migrations"),
		JWTSecret:               e.str("JWT_SECRET", ""),
		DataEncryptionKey:       e.str("DATA_ENCRYPTION_KEY", ""),
		FrontendDir:             e.str("FRONTEND_DIR", "frontend/dist"),
		Environment:             e.str("APP_ENV", "development"),
		LogLevel:                e.str("LOG_LEVEL", "info"),
		SeedTenantName:          e.str("SEED_TENANT_NAME", "Default Tenant"),
		SeedAdminEmail:          e.str("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:       e.str("SEED_ADMIN_PASSWORD", ""),
		SeedSystemAdminEmail:    e.str("SEED_SYSTEM_ADMIN_EMAIL", ""),
		SeedSystemAdminPassword: e.str("SEED_SYSTEM_ADMIN_PASSWORD", ""),
		SeedSalaryLevels:        e.boolean("SEED_SALARY_LEVELS", true),
		EmailFrom:               e.str("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:            e.boolean("EMAIL_ENABLED", false),
		SMTPHost:                e.str("SMTP_HOST", ""),
		SMTPPort:                e.integer("SMTP_PORT", 587),
		SMTPUser:                e.str("SMTP_USER", ""),
		SMTPPassword:            e.str("SMTP_PASSWORD", ""),
		SMTPUseTLS:              e.boolean("SMTP_USE_TLS", false),
		StorageDriver:           strings.ToLower(e.str("STORAGE_DRIVER", StorageLocal)),
		StorageDir:              e.str("STORAGE_DIR", "storage/evidence"),
		S3Endpoint:              e.str("S3_ENDPOINT", ""),
		S3AccessKey:             e.str("S3_ACCESS_KEY", ""),
		S3SecretKey:             e.str("S3_SECRET_KEY", ""),
		S3Bucket:                e.str("S3_BUCKET", "pmds-evidence"),
		S3UseSSL:                e.boolean("S3_USE_SSL", true),
		MaxUploadBytes:          e.bytes("MAX_UPLOAD_BYTES", 10<<20),
		RunMigrations:           e.boolean("RUN_MIGRATIONS", true),
		RunSeed:                 e.boolean("RUN_SEED", true),
		MaxBodyBytes:            e.bytes("MAX_BODY_BYTES", 1<<20),
		RateLimitPerMinute:      e.integer("RATE_LIMIT_PER_MINUTE", 60),
		ReminderInterval:        e.duration("REMINDER_INTERVAL", time.Hour),
		ReminderLookahead:       e.duration("REMINDER_LOOKAHEAD", 7*24*time.Hour),
		MetricsEnabled:          e.boolean("METRICS_ENABLED", true),
	}
	cfg.malformed = e.errs
	return cfg
}

type env struct {
	errs []error
}

func (e *env) str(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func lookup[T any](e *env, key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q", key, raw))
		return fallback
	}
	return value
}

func (e *env) boolean(key string, fallback bool) bool {
	return lookup(e, key, fallback, strconv.ParseBool)
}

func (e *env) integer(key string, fallback int) int {
	return lookup(e, key, fallback, strconv.Atoi)
}

func (e *env) bytes(key string, fallback int64) int64 {
	return lookup(e, key, fallback, func(raw string) (int64, error) { return strconv.ParseInt(raw, 10, 64) })
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	return lookup(e, key, fallback, time.ParseDuration)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	problems := slices.Clone(c.malformed)
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.DatabaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			fail("JWT_SECRET must be set to a strong value in production")
		}
		if c.DataEncryptionKey == "" {
			fail("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && c.SeedAdminPassword == "" {
			fail("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		fail("MAX_BODY_BYTES must be at least 1024")
	}
	if c.MaxUploadBytes < 1024 {
		fail("MAX_UPLOAD_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		fail("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.ReminderLookahead < 0 {
		fail("REMINDER_LOOKAHEAD must not be negative")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		fail("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	switch c.StorageDriver {
	case StorageLocal:
		if c.StorageDir == "" {
			fail("STORAGE_DIR must be set for local storage")
		}
	case StorageS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" {
			fail("S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET are required for s3 storage")
		}
	default:
		fail("STORAGE_DRIVER must be %q or %q", StorageLocal, StorageS3)
	}
	return errors.Join(problems...)
}
