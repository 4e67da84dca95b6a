package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported event drivers.
const (
	EventsDriverGoChannel = "gochannel"
	EventsDriverKafka     = "kafka"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Grading      GradingConfig
	Enrollment   EnrollmentConfig
	Certificates CertificatesConfig
	CourseCache  CourseCacheConfig
	Events       EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify access tokens issued by the auth service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig selects the free-text grading policy and the pass mark.
type GradingConfig struct {
	TextPolicy    string
	PassThreshold int
}

// EnrollmentConfig bounds optimistic-version retries on enrollment writes.
type EnrollmentConfig struct {
	MaxRetries int
}

// CertificatesConfig controls certificate storage, signing and the backfill sweep.
type CertificatesConfig struct {
	StorageDir      string
	SignedURLSecret string
	Validity        time.Duration
	BackfillCron    string
	BackfillBatch   int
	Workers         int
	Retries         int
	RetryDelay      time.Duration
}

// CourseCacheConfig governs the Redis read-through cache for course definitions.
type CourseCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// EventsConfig picks the watermill backend for domain events.
type EventsConfig struct {
	Driver       string
	KafkaBrokers []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Grading = GradingConfig{
		TextPolicy:    strings.ToLower(strings.TrimSpace(v.GetString("GRADING_TEXT_POLICY"))),
		PassThreshold: v.GetInt("GRADING_PASS_THRESHOLD"),
	}

	cfg.Enrollment = EnrollmentConfig{
		MaxRetries: v.GetInt("ENROLLMENT_MAX_RETRIES"),
	}

	cfg.Certificates = CertificatesConfig{
		StorageDir:      v.GetString("CERTIFICATES_STORAGE_DIR"),
		SignedURLSecret: v.GetString("CERTIFICATES_SIGNED_URL_SECRET"),
		Validity:        parseDuration(v.GetString("CERTIFICATE_VALIDITY"), 2*365*24*time.Hour),
		BackfillCron:    v.GetString("CERTIFICATE_BACKFILL_CRON"),
		BackfillBatch:   v.GetInt("CERTIFICATE_BACKFILL_BATCH"),
		Workers:         v.GetInt("CERTIFICATE_WORKERS"),
		Retries:         v.GetInt("CERTIFICATE_RETRIES"),
		RetryDelay:      parseDuration(v.GetString("CERTIFICATE_RETRY_DELAY"), 5*time.Second),
	}

	cfg.CourseCache = CourseCacheConfig{
		Enabled: v.GetBool("ENABLE_COURSE_CACHE"),
		TTL:     parseDuration(v.GetString("COURSE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		Driver:       strings.ToLower(v.GetString("EVENTS_DRIVER")),
		KafkaBrokers: splitAndTrim(v.GetString("EVENTS_KAFKA_BROKERS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "learnhub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_TEXT_POLICY", "exact-match")
	v.SetDefault("GRADING_PASS_THRESHOLD", 70)
	v.SetDefault("ENROLLMENT_MAX_RETRIES", 3)

	v.SetDefault("CERTIFICATES_STORAGE_DIR", "./certificates")
	v.SetDefault("CERTIFICATES_SIGNED_URL_SECRET", "dev_certificates_secret")
	v.SetDefault("CERTIFICATE_VALIDITY", "17520h")
	v.SetDefault("CERTIFICATE_BACKFILL_CRON", "@every 10m")
	v.SetDefault("CERTIFICATE_BACKFILL_BATCH", 100)
	v.SetDefault("CERTIFICATE_WORKERS", 2)
	v.SetDefault("CERTIFICATE_RETRIES", 3)
	v.SetDefault("CERTIFICATE_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_COURSE_CACHE", true)
	v.SetDefault("COURSE_CACHE_TTL", "5m")

	v.SetDefault("EVENTS_DRIVER", EventsDriverGoChannel)
	v.SetDefault("EVENTS_KAFKA_BROKERS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
