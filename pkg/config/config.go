package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultTrainingTypes lists the additional training labels offered when TRAINING_TYPES is unset.
var DefaultTrainingTypes = []string{
	"Охрана труда",
	"Пожарная безопасность",
	"Электробезопасность",
	"Первая помощь",
	"Работы на высоте",
	"Промышленная безопасность",
	"Прочее",
}

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Compliance ComplianceConfig
	Analytics  AnalyticsConfig
	Telegram   TelegramConfig
	Reports    ReportsConfig
	Photos     PhotosConfig
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

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL renders the postgres:// form used by migrations.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ComplianceConfig holds the briefing thresholds shared by every status computation.
type ComplianceConfig struct {
	WarningDays   int
	ExpiryDays    int
	Timezone      string
	TrainingTypes []string
}

// Location resolves the configured timezone, falling back to UTC.
func (c ComplianceConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AnalyticsConfig governs feature flagging and cache behaviour for analytics endpoints.
type AnalyticsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// TelegramConfig configures the bot used for report delivery and the webhook.
type TelegramConfig struct {
	Enabled        bool
	BotToken       string
	ChatID         string
	WebhookSecret  string
	AllowedChatIDs []string
	APIBaseURL     string
	Timeout        time.Duration
	Workers        int
	Retries        int
}

// ReportsConfig configures export storage and signed downloads.
type ReportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	PDFFontDir      string
	PDFFontFamily   string
}

// PhotosConfig controls employee photo uploads.
type PhotosConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	trainingTypes := splitAndTrim(v.GetString("TRAINING_TYPES"))
	if len(trainingTypes) == 0 {
		trainingTypes = append([]string(nil), DefaultTrainingTypes...)
	}
	cfg.Compliance = ComplianceConfig{
		WarningDays:   v.GetInt("COMPLIANCE_WARNING_DAYS"),
		ExpiryDays:    v.GetInt("COMPLIANCE_EXPIRY_DAYS"),
		Timezone:      v.GetString("COMPLIANCE_TIMEZONE"),
		TrainingTypes: trainingTypes,
	}

	cfg.Analytics = AnalyticsConfig{
		Enabled:  v.GetBool("ENABLE_ANALYTICS"),
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Telegram = TelegramConfig{
		Enabled:        v.GetBool("ENABLE_TELEGRAM"),
		BotToken:       v.GetString("TELEGRAM_BOT_TOKEN"),
		ChatID:         v.GetString("TELEGRAM_CHAT_ID"),
		WebhookSecret:  v.GetString("TELEGRAM_WEBHOOK_SECRET"),
		AllowedChatIDs: splitAndTrim(v.GetString("TELEGRAM_ALLOWED_CHAT_IDS")),
		APIBaseURL:     v.GetString("TELEGRAM_API_BASE_URL"),
		Timeout:        parseDuration(v.GetString("TELEGRAM_TIMEOUT"), 10*time.Second),
		Workers:        v.GetInt("TELEGRAM_WORKERS"),
		Retries:        v.GetInt("TELEGRAM_RETRIES"),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		PDFFontDir:      v.GetString("REPORTS_PDF_FONT_DIR"),
		PDFFontFamily:   v.GetString("REPORTS_PDF_FONT_FAMILY"),
	}

	maxPhotoSize := v.GetInt64("PHOTOS_MAX_FILE_SIZE")
	if maxPhotoSize <= 0 {
		maxPhotoSize = 5 * 1024 * 1024
	}
	cfg.Photos = PhotosConfig{
		StorageDir:       v.GetString("PHOTOS_STORAGE_DIR"),
		MaxFileSizeBytes: maxPhotoSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("PHOTOS_ALLOWED_MIME_TYPES")),
	}

	if err := cfg.Compliance.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects threshold combinations the compliance engine cannot work with.
func (c ComplianceConfig) Validate() error {
	if c.WarningDays < 0 || c.ExpiryDays < 0 {
		return fmt.Errorf("compliance thresholds must be non-negative (warning=%d, expiry=%d)", c.WarningDays, c.ExpiryDays)
	}
	if c.WarningDays >= c.ExpiryDays {
		return fmt.Errorf("COMPLIANCE_WARNING_DAYS (%d) must be less than COMPLIANCE_EXPIRY_DAYS (%d)", c.WarningDays, c.ExpiryDays)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid COMPLIANCE_TIMEZONE %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "briefing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COMPLIANCE_WARNING_DAYS", 75)
	v.SetDefault("COMPLIANCE_EXPIRY_DAYS", 90)
	v.SetDefault("COMPLIANCE_TIMEZONE", "UTC")
	v.SetDefault("TRAINING_TYPES", "")

	v.SetDefault("ENABLE_ANALYTICS", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_TELEGRAM", false)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("TELEGRAM_WEBHOOK_SECRET", "")
	v.SetDefault("TELEGRAM_ALLOWED_CHAT_IDS", "")
	v.SetDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org")
	v.SetDefault("TELEGRAM_TIMEOUT", "10s")
	v.SetDefault("TELEGRAM_WORKERS", 1)
	v.SetDefault("TELEGRAM_RETRIES", 3)

	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_PDF_FONT_DIR", "")
	v.SetDefault("REPORTS_PDF_FONT_FAMILY", "")

	v.SetDefault("PHOTOS_STORAGE_DIR", "./photos")
	v.SetDefault("PHOTOS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("PHOTOS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp,image/gif")
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
