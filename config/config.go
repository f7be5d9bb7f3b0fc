package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tracker.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`

	Discord DiscordConfig `json:"discord"`

	Monitor MonitorConfig `json:"monitor"`

	Polymarket PolymarketConfig `json:"polymarket"`

	Storage StorageConfig `json:"storage"`

	HealthServer HealthServerConfig `json:"health_server"`

	LogLevel string `json:"log_level"`
}

type TelegramConfig struct {
	BotToken    string `json:"-"` // Excluded - env var only
	APIEndpoint string `json:"api_endpoint"`
	AdminChatID int64  `json:"admin_chat_id"`
}

type DiscordConfig struct {
	WebhookURL string `json:"-"` // Excluded - contains the webhook token
}

type MonitorConfig struct {
	PollInterval       time.Duration `json:"poll_interval"`
	BackoffMin         time.Duration `json:"backoff_min"`
	BackoffMax         time.Duration `json:"backoff_max"`
	ActivityPageLimit  int           `json:"activity_page_limit"`  // Max activities fetched per wallet per poll
	PositionsPageLimit int           `json:"positions_page_limit"` // Page size when paging /positions
}

type PolymarketConfig struct {
	DataAPIURL string `json:"data_api_url"`
	ClobAPIURL string `json:"clob_api_url"`
}

type StorageConfig struct {
	DBPath string `json:"db_path"`
}

type HealthServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

const DefaultTelegramAPIEndpoint = "https://api.telegram.org/bot%s/%s"

// Defaults returns a config with every optional value populated.
func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIEndpoint: DefaultTelegramAPIEndpoint,
		},
		Monitor: MonitorConfig{
			PollInterval:       10 * time.Second,
			BackoffMin:         2 * time.Second,
			BackoffMax:         60 * time.Second,
			ActivityPageLimit:  100,
			PositionsPageLimit: 500,
		},
		Polymarket: PolymarketConfig{
			DataAPIURL: "https://data-api.polymarket.com",
			ClobAPIURL: "https://clob.polymarket.com",
		},
		Storage: StorageConfig{
			DBPath: "./data/bot.db",
		},
		HealthServer: HealthServerConfig{
			Enabled: true,
			Port:    8080,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	d := Defaults()
	return &Config{
		Telegram: TelegramConfig{
			BotToken:    envString("TELEGRAM_BOT_TOKEN", ""),
			APIEndpoint: envString("TELEGRAM_API_ENDPOINT", d.Telegram.APIEndpoint),
			AdminChatID: envInt64("ADMIN_CHAT_ID", 0),
		},

		Discord: DiscordConfig{
			WebhookURL: envString("DISCORD_WEBHOOK_URL", ""),
		},

		Monitor: MonitorConfig{
			PollInterval:       envMillis("POLL_INTERVAL_MS", d.Monitor.PollInterval),
			BackoffMin:         envDuration("BACKOFF_MIN", d.Monitor.BackoffMin),
			BackoffMax:         envDuration("BACKOFF_MAX", d.Monitor.BackoffMax),
			ActivityPageLimit:  envInt("ACTIVITY_PAGE_LIMIT", d.Monitor.ActivityPageLimit),
			PositionsPageLimit: envInt("POSITIONS_PAGE_LIMIT", d.Monitor.PositionsPageLimit),
		},

		Polymarket: PolymarketConfig{
			DataAPIURL: envString("POLYMARKET_DATA_API_URL", d.Polymarket.DataAPIURL),
			ClobAPIURL: envString("POLYMARKET_CLOB_API_URL", d.Polymarket.ClobAPIURL),
		},

		Storage: StorageConfig{
			DBPath: envString("DB_PATH", d.Storage.DBPath),
		},

		HealthServer: HealthServerConfig{
			Enabled: envBoolDefault("HEALTH_SERVER_ENABLED", d.HealthServer.Enabled),
			Port:    envInt("HEALTH_SERVER_PORT", d.HealthServer.Port),
		},

		LogLevel: strings.ToLower(envString("LOG_LEVEL", d.LogLevel)),
	}
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envInt64(key string, defaultVal int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// envMillis reads an integer millisecond count.
func envMillis(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
