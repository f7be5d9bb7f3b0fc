package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_API_ENDPOINT", "ADMIN_CHAT_ID",
	"DISCORD_WEBHOOK_URL",
	"POLL_INTERVAL_MS", "BACKOFF_MIN", "BACKOFF_MAX", "ACTIVITY_PAGE_LIMIT", "POSITIONS_PAGE_LIMIT",
	"POLYMARKET_DATA_API_URL", "POLYMARKET_CLOB_API_URL",
	"DB_PATH", "HEALTH_SERVER_ENABLED", "HEALTH_SERVER_PORT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allEnvVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Telegram.BotToken != "" {
		t.Error("expected empty bot token by default")
	}
	if cfg.Telegram.APIEndpoint != DefaultTelegramAPIEndpoint {
		t.Errorf("unexpected api endpoint: %s", cfg.Telegram.APIEndpoint)
	}
	if cfg.Telegram.AdminChatID != 0 {
		t.Errorf("expected no admin chat, got %d", cfg.Telegram.AdminChatID)
	}
	if cfg.Monitor.PollInterval != 10*time.Second {
		t.Errorf("unexpected poll interval: %v", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.BackoffMin != 2*time.Second || cfg.Monitor.BackoffMax != 60*time.Second {
		t.Errorf("unexpected backoff bounds: %v..%v", cfg.Monitor.BackoffMin, cfg.Monitor.BackoffMax)
	}
	if cfg.Monitor.ActivityPageLimit != 100 {
		t.Errorf("unexpected activity page limit: %d", cfg.Monitor.ActivityPageLimit)
	}
	if cfg.Monitor.PositionsPageLimit != 500 {
		t.Errorf("unexpected positions page limit: %d", cfg.Monitor.PositionsPageLimit)
	}
	if cfg.Storage.DBPath != "./data/bot.db" {
		t.Errorf("unexpected db path: %s", cfg.Storage.DBPath)
	}
	if cfg.Polymarket.DataAPIURL != "https://data-api.polymarket.com" {
		t.Errorf("unexpected data API URL: %s", cfg.Polymarket.DataAPIURL)
	}
	if cfg.Polymarket.ClobAPIURL != "https://clob.polymarket.com" {
		t.Errorf("unexpected clob API URL: %s", cfg.Polymarket.ClobAPIURL)
	}
	if !cfg.HealthServer.Enabled || cfg.HealthServer.Port != 8080 {
		t.Errorf("unexpected health server config: %+v", cfg.HealthServer)
	}
	if cfg.Discord.WebhookURL != "" {
		t.Error("expected discord webhook disabled by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_CHAT_ID", "-100200300")
	t.Setenv("POLL_INTERVAL_MS", "2500")
	t.Setenv("BACKOFF_MIN", "1s")
	t.Setenv("BACKOFF_MAX", "30s")
	t.Setenv("DB_PATH", "/tmp/tracker.db")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/42/secret")
	t.Setenv("HEALTH_SERVER_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("unexpected bot token: %s", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.AdminChatID != -100200300 {
		t.Errorf("unexpected admin chat id: %d", cfg.Telegram.AdminChatID)
	}
	if cfg.Monitor.PollInterval != 2500*time.Millisecond {
		t.Errorf("unexpected poll interval: %v", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.BackoffMin != time.Second || cfg.Monitor.BackoffMax != 30*time.Second {
		t.Errorf("unexpected backoff: %v..%v", cfg.Monitor.BackoffMin, cfg.Monitor.BackoffMax)
	}
	if cfg.Storage.DBPath != "/tmp/tracker.db" {
		t.Errorf("unexpected db path: %s", cfg.Storage.DBPath)
	}
	if cfg.HealthServer.Enabled {
		t.Error("expected health server disabled")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected lowercased log level, got %s", cfg.LogLevel)
	}
	if result := cfg.Validate(); !result.Valid {
		t.Errorf("expected valid config, got %v", result.Errors)
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	t.Setenv("TEST_WHITESPACE", "  trimmed  ")

	if v := envString("TEST_STRING", "default"); v != "hello" {
		t.Errorf("expected 'hello', got '%s'", v)
	}
	if v := envString("NONEXISTENT_TEST_KEY", "default"); v != "default" {
		t.Errorf("expected 'default', got '%s'", v)
	}
	if v := envString("TEST_WHITESPACE", "default"); v != "trimmed" {
		t.Errorf("expected 'trimmed', got '%s'", v)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INVALID_INT", "not-a-number")

	if v := envInt("TEST_INT", 0); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if v := envInt("TEST_INVALID_INT", 50); v != 50 {
		t.Errorf("expected 50 for invalid int, got %d", v)
	}
}

func TestEnvMillis(t *testing.T) {
	t.Setenv("TEST_MS", "1500")
	t.Setenv("TEST_BAD_MS", "1.5s")

	if v := envMillis("TEST_MS", time.Second); v != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", v)
	}
	if v := envMillis("TEST_BAD_MS", time.Second); v != time.Second {
		t.Errorf("expected default for non-integer, got %v", v)
	}
}

func TestEnvBoolDefault(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"false", true, false},
		{"nope", true, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := envBoolDefault("TEST_BOOL", tt.fallback); got != tt.want {
			t.Errorf("envBoolDefault(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
		}
	}
}
