package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/asiatek/partsbot/internal/database"
	"github.com/asiatek/partsbot/internal/logger"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// MailConfig holds SMTP settings for admin notifications.
type MailConfig struct {
	Host     string `yaml:"host" envconfig:"SMTP_HOST"`
	Port     int    `yaml:"port" envconfig:"SMTP_PORT"`
	Username string `yaml:"username" envconfig:"SMTP_USERNAME"`
	Password string `yaml:"password" envconfig:"SMTP_PASSWORD"`
	From     string `yaml:"from" envconfig:"MAIL_FROM"`
	AdminTo  string `yaml:"admin_to" envconfig:"ADMIN_EMAIL"`
}

// SessionsConfig controls conversation session storage.
// An empty Dir keeps sessions in memory only.
type SessionsConfig struct {
	Dir      string `yaml:"dir" envconfig:"SESSIONS_DIR"`
	TTLHours int    `yaml:"ttl_hours" envconfig:"SESSIONS_TTL_HOURS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting: "callback", "message".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Database  database.Config `yaml:"database"`
	Mail      MailConfig      `yaml:"mail"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   logger.Settings `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required configuration fields and adjusts defaults.
// Every missing required field is a fatal startup condition.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			cfg.Webhook.Listen = "0.0.0.0"
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Secret) == "" {
			return fmt.Errorf("webhook.secret is required when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := normalizeMail(&cfg.Mail); err != nil {
		return err
	}

	if cfg.Sessions.TTLHours < 0 {
		return fmt.Errorf("sessions.ttl_hours must be >= 0")
	}
	if cfg.Sessions.TTLHours == 0 {
		cfg.Sessions.TTLHours = 72
	}

	allowed := map[string]struct{}{
		"callback": {},
		"message":  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeDatabase(db *database.Config) error {
	if strings.TrimSpace(db.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(db.Port) == "" {
		db.Port = "5432"
	}
	if strings.TrimSpace(db.User) == "" {
		return fmt.Errorf("database.user is required")
	}
	if strings.TrimSpace(db.Password) == "" {
		return fmt.Errorf("database.password is required")
	}
	if strings.TrimSpace(db.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if strings.TrimSpace(db.SSLMode) == "" {
		db.SSLMode = "require"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 4
	}
	return nil
}

func normalizeMail(m *MailConfig) error {
	if strings.TrimSpace(m.Host) == "" {
		return fmt.Errorf("mail.host is required")
	}
	if m.Port <= 0 {
		m.Port = 465
	}
	if strings.TrimSpace(m.Username) == "" {
		return fmt.Errorf("mail.username is required")
	}
	if strings.TrimSpace(m.Password) == "" {
		return fmt.Errorf("mail.password is required")
	}
	if strings.TrimSpace(m.From) == "" {
		m.From = "Parts Bot <bot@asiatek.pro>"
	}
	if strings.TrimSpace(m.AdminTo) == "" {
		return fmt.Errorf("mail.admin_to is required")
	}
	return nil
}
