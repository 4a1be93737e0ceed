package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`

	StoreBackend  string `yaml:"store_backend"`
	DatabasePath  string `yaml:"database_path"`
	DatabaseURL   string `yaml:"database_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	TelegramBotToken  string `yaml:"telegram_bot_token"`
	TelegramAPIURL    string `yaml:"telegram_api_url"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`

	// Operator mailbox mirror (Resend)
	ResendAPIKey   string `yaml:"resend_api_key"`
	AlertEmailFrom string `yaml:"alert_email_from"`
	AlertEmailTo   string `yaml:"alert_email_to"`

	TaapiSecret       string        `yaml:"taapi_secret"`
	TaapiURL          string        `yaml:"taapi_url"`
	IndicatorBudget   int           `yaml:"indicator_budget"`
	IndicatorCooldown time.Duration `yaml:"indicator_cooldown"`

	DexScreenerURL string `yaml:"dexscreener_url"`

	AIProvider string `yaml:"ai_provider"`
	AIAPIKey   string `yaml:"ai_api_key"`
	AIModel    string `yaml:"ai_model"`
	AIAPIURL   string `yaml:"ai_api_url"`

	SchedulerEnabled bool   `yaml:"scheduler_enabled"`
	ScanSchedule     string `yaml:"scan_schedule"`
	SummarySchedule  string `yaml:"summary_schedule"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:              "8000",
		Environment:       "development",
		StoreBackend:      BackendSQLite,
		DatabasePath:      "./dexalert.db",
		RedisAddr:         "localhost:6379",
		IndicatorBudget:   90,
		IndicatorCooldown: 60 * time.Second,
		AIProvider:        "puter",
		SchedulerEnabled:  true,
		ScanSchedule:      "*/2 * * * *",
		SummarySchedule:   "0 0 * * *",
		LogLevel:          "info",
	}
}

// Load reads configuration. Priority order: environment variables > YAML file
// named by CONFIG_FILE > .env file > defaults.
func Load() (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) overrideFromEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Environment, "ENVIRONMENT")

	setString(&c.StoreBackend, "STORE_BACKEND")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")

	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.TelegramAPIURL, "TELEGRAM_API_URL")
	setString(&c.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	setString(&c.ResendAPIKey, "RESEND_API_KEY")
	setString(&c.AlertEmailFrom, "ALERT_EMAIL_FROM")
	setString(&c.AlertEmailTo, "ALERT_EMAIL_TO")

	setString(&c.TaapiSecret, "TAAPI_IO_SECRET")
	setString(&c.TaapiURL, "TAAPI_URL")
	setString(&c.DexScreenerURL, "DEXSCREENER_URL")

	setString(&c.AIProvider, "AI_PROVIDER")
	setString(&c.AIAPIKey, "AI_API_KEY")
	setString(&c.AIModel, "AI_MODEL")
	setString(&c.AIAPIURL, "AI_API_URL")

	setString(&c.ScanSchedule, "SCAN_SCHEDULE")
	setString(&c.SummarySchedule, "SUMMARY_SCHEDULE")
	setString(&c.LogLevel, "LOG_LEVEL")

	var errs []error
	errs = append(errs,
		setInt(&c.RedisDB, "REDIS_DB"),
		setInt(&c.IndicatorBudget, "INDICATOR_BUDGET"),
		setDuration(&c.IndicatorCooldown, "INDICATOR_COOLDOWN"),
		setBool(&c.SchedulerEnabled, "SCHEDULER_ENABLED"),
		setBool(&c.LogPretty, "LOG_PRETTY"),
	)
	return errors.Join(errs...)
}

// Validate checks that required configuration values are set and valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return errors.New("DATABASE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.IndicatorBudget < 1 {
		return errors.New("INDICATOR_BUDGET must be at least 1")
	}
	if c.IndicatorCooldown <= 0 {
		return errors.New("INDICATOR_COOLDOWN must be positive")
	}

	switch strings.ToLower(c.AIProvider) {
	case "", "none", "puter", "openai", "claude", "gemini":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	return nil
}

// AIEnabled reports whether a prediction provider is configured
func (c *Config) AIEnabled() bool {
	p := strings.ToLower(c.AIProvider)
	return p != "" && p != "none"
}

// EmailEnabled reports whether alerts are mirrored to an operator mailbox
func (c *Config) EmailEnabled() bool {
	return c.ResendAPIKey != "" && strings.TrimSpace(c.AlertEmailTo) != ""
}

// MaskedTelegramToken returns the bot token with most characters hidden for logging
func (c *Config) MaskedTelegramToken() string {
	return maskSecret(c.TelegramBotToken)
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// setDuration accepts Go durations ("90s") or plain seconds ("60")
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
