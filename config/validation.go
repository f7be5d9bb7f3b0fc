package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Error joins all validation errors into one line.
func (r ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Field + ": " + e.Message
	}
	return "config validation failed: " + strings.Join(parts, "; ")
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateTelegram(&c.Telegram)...)
	errors = append(errors, validateDiscord(&c.Discord)...)
	errors = append(errors, validateMonitor(&c.Monitor)...)
	errors = append(errors, validatePolymarket(&c.Polymarket)...)

	if strings.TrimSpace(c.Storage.DBPath) == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.db_path",
			Message: "is required",
		})
	}

	if c.HealthServer.Enabled {
		errors = append(errors, validateHealthServer(&c.HealthServer)...)
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateTelegram(tg *TelegramConfig) []ValidationError {
	var errors []ValidationError

	if tg.BotToken == "" {
		errors = append(errors, ValidationError{
			Field:   "telegram.bot_token",
			Message: "TELEGRAM_BOT_TOKEN is required",
		})
	}

	if strings.Count(tg.APIEndpoint, "%s") != 2 {
		errors = append(errors, ValidationError{
			Field:   "telegram.api_endpoint",
			Message: "must contain two %s placeholders (token, method)",
		})
	}

	return errors
}

func validateDiscord(dc *DiscordConfig) []ValidationError {
	if dc.WebhookURL == "" {
		return nil
	}
	if _, _, err := ParseWebhookURL(dc.WebhookURL); err != nil {
		return []ValidationError{{
			Field:   "discord.webhook_url",
			Message: err.Error(),
		}}
	}
	return nil
}

func validateMonitor(m *MonitorConfig) []ValidationError {
	var errors []ValidationError

	if m.PollInterval < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "monitor.poll_interval",
			Message: "must be at least 1000ms",
		})
	}

	if m.BackoffMin <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.backoff_min",
			Message: "must be positive",
		})
	}

	if m.BackoffMax < m.BackoffMin {
		errors = append(errors, ValidationError{
			Field:   "monitor.backoff_max",
			Message: "must be at least backoff_min",
		})
	}

	if m.ActivityPageLimit < 1 || m.ActivityPageLimit > 500 {
		errors = append(errors, ValidationError{
			Field:   "monitor.activity_page_limit",
			Message: fmt.Sprintf("must be between 1 and 500, got %d", m.ActivityPageLimit),
		})
	}

	if m.PositionsPageLimit < 1 || m.PositionsPageLimit > 500 {
		errors = append(errors, ValidationError{
			Field:   "monitor.positions_page_limit",
			Message: fmt.Sprintf("must be between 1 and 500, got %d", m.PositionsPageLimit),
		})
	}

	return errors
}

func validatePolymarket(p *PolymarketConfig) []ValidationError {
	var errors []ValidationError

	for field, raw := range map[string]string{
		"polymarket.data_api_url": p.DataAPIURL,
		"polymarket.clob_api_url": p.ClobAPIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "must be an absolute URL",
			})
		}
	}

	return errors
}

func validateHealthServer(hs *HealthServerConfig) []ValidationError {
	var errors []ValidationError

	if hs.Port < 1 || hs.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "health_server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", hs.Port),
		})
	}

	return errors
}

// ParseWebhookURL extracts the webhook ID and token from a Discord webhook URL
// of the form https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("expected .../webhooks/<id>/<token>")
}
