package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiatek/partsbot/internal/database"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:   "123456:TEST-TOKEN",
			RunMode: "longpoll",
		},
		Database: database.Config{
			Host:     "db.example.com",
			User:     "partsbot",
			Password: "secret",
			Name:     "partsbot",
		},
		Mail: MailConfig{
			Host:     "smtp.example.com",
			Username: "bot@asiatek.pro",
			Password: "secret",
			AdminTo:  "admin@asiatek.pro",
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 4, cfg.Database.MaxConnections)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "Parts Bot <bot@asiatek.pro>", cfg.Mail.From)
	assert.Equal(t, 72, cfg.Sessions.TTLHours)
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeWebhookMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "" // defaults to webhook
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.url")

	cfg.Webhook.URL = "https://bot.asiatek.pro/webhook"
	err = Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.port")

	cfg.Webhook.Port = 8443
	err = Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.secret")

	cfg.Webhook.Secret = "s3cret"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
	assert.Equal(t, "0.0.0.0", cfg.Webhook.Listen)
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "message"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)

	cfg = validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	assert.Error(t, Normalize(cfg))
}

func TestLoadFromYAML(t *testing.T) {
	content := `
telegram:
  token: "123456:FILE-TOKEN"
  run_mode: longpoll
database:
  host: db.example.com
  user: partsbot
  password: secret
  name: partsbot
mail:
  host: smtp.example.com
  username: bot@asiatek.pro
  password: secret
  admin_to: admin@asiatek.pro
sessions:
  ttl_hours: 24
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123456:FILE-TOKEN", cfg.Telegram.Token)
	assert.Equal(t, 24, cfg.Sessions.TTLHours)
	assert.Equal(t, "require", cfg.Database.SSLMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
