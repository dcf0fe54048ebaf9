// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the explicit configuration handed to each component at construction.
type Config struct {
	DiscordToken      string
	MainServerID      string `validate:"omitempty,numeric"`
	AdminRoleID       string `validate:"omitempty,numeric"`
	KeywordReviewerID string `validate:"omitempty,numeric"`

	DataDir       string `validate:"required"`
	RulesFile     string
	BlacklistMode string `validate:"oneof=exact contains"`

	Webhooks       WebhookConfig
	WebhookTimeout time.Duration `validate:"gt=0"`

	Scan            ScanConfig
	PipelineWorkers int `validate:"min=1,max=64"`

	LedgerBackend string `validate:"oneof=file postgres"`
	DatabaseDSN   string `validate:"required_if=LedgerBackend postgres"`

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AlertChannelPrefix string

	TelegramToken       string
	TelegramAlertChatID int64

	HTTPAddr  string
	JWTSecret string

	LogLevel  string `validate:"oneof=trace debug info warn warning error"`
	LogFormat string `validate:"oneof=text json"`
}

// WebhookConfig holds the outbound alert channels. Empty URLs disable a channel.
type WebhookConfig struct {
	Low       string `validate:"omitempty,url"`
	Medium    string `validate:"omitempty,url"`
	High      string `validate:"omitempty,url"`
	Watchlist string `validate:"omitempty,url"`
}

// ScanConfig bounds the mutual-community scanner.
type ScanConfig struct {
	Workers         int           `validate:"min=1,max=20"`
	Threshold       int           `validate:"min=1"`
	Timeout         time.Duration `validate:"gt=0"`
	ProbesPerSecond float64       `validate:"gt=0"`
}

// Load reads .env (if present) and the environment into a validated Config.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables only")
	}

	cfg := &Config{
		DiscordToken:      os.Getenv("DISCORD_TOKEN"),
		MainServerID:      os.Getenv("MAIN_SERVER_ID"),
		AdminRoleID:       os.Getenv("ADMIN_ROLE_ID"),
		KeywordReviewerID: os.Getenv("KEYWORD_REVIEWER_ID"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		RulesFile:         os.Getenv("RULES_FILE"),
		BlacklistMode:     strings.ToLower(getEnv("BLACKLIST_MODE", "exact")),
		Webhooks: WebhookConfig{
			Low:       os.Getenv("WEBHOOK_LOW"),
			Medium:    os.Getenv("WEBHOOK_MEDIUM"),
			High:      os.Getenv("WEBHOOK_HIGH"),
			Watchlist: os.Getenv("WATCHLIST_WEBHOOK_URL"),
		},
		LedgerBackend:      strings.ToLower(getEnv("LEDGER_BACKEND", "file")),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AlertChannelPrefix: getEnv("ALERT_CHANNEL_PREFIX", "flagwatch"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.WebhookTimeout, err = getDuration("WEBHOOK_TIMEOUT", DefaultWebhookTimeout); err != nil {
		return nil, err
	}
	if cfg.Scan.Workers, err = getInt("SCAN_WORKERS", DefaultScanWorkers); err != nil {
		return nil, err
	}
	if cfg.Scan.Threshold, err = getInt("SCAN_THRESHOLD", DefaultScanThreshold); err != nil {
		return nil, err
	}
	if cfg.Scan.Timeout, err = getDuration("SCAN_TIMEOUT", DefaultScanTimeout); err != nil {
		return nil, err
	}
	if cfg.Scan.ProbesPerSecond, err = getFloat("SCAN_PROBES_PER_SECOND", DefaultScanProbesPerSecond); err != nil {
		return nil, err
	}
	if cfg.PipelineWorkers, err = getInt("PIPELINE_WORKERS", DefaultPipelineWorkers); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	chatID, err := getInt("TELEGRAM_ALERT_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}
	cfg.TelegramAlertChatID = int64(chatID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be an integer", key)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be a number", key)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be a duration", key)
	}
	return d, nil
}
