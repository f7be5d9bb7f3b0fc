package discord

import (
	"context"
	"fmt"
	"time"

	"polytracker/clients/notifier"
	"polytracker/config"
	"polytracker/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	colorBuy  = 0x00ff00
	colorSell = 0xff0000
)

// DiscordClient posts trade alerts to a Discord webhook.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger       *zap.Logger
	session      *discordgo.Session
	webhookID    string
	webhookToken string
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Discord.WebhookURL == "" {
		logger.Info("DISCORD_WEBHOOK_URL not set, Discord alerts disabled")
		return &DiscordClient{logger: logger}
	}

	id, token, err := config.ParseWebhookURL(cfg.Discord.WebhookURL)
	if err != nil {
		logger.Error("invalid discord webhook url, Discord alerts disabled", zap.Error(err))
		return &DiscordClient{logger: logger}
	}

	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{logger: logger}
	}

	logger.Info("discord webhook initialized", zap.String("webhookID", id))

	return &DiscordClient{
		logger:       logger,
		session:      session,
		webhookID:    id,
		webhookToken: token,
	}
}

// Enabled reports whether a webhook is configured.
func (dc *DiscordClient) Enabled() bool {
	return dc.session != nil
}

// SendTradeAlert posts a rich embedded trade alert. A disabled client
// silently does nothing. Implements notifier.Notifier interface.
func (dc *DiscordClient) SendTradeAlert(ctx context.Context, alert notifier.TradeAlert) error {
	if dc.session == nil {
		return nil
	}

	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{buildTradeEmbed(alert)},
	}

	if _, err := dc.session.WebhookExecute(dc.webhookID, dc.webhookToken, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("execute discord webhook: %w", err)
	}

	dc.logger.Info("sent discord trade alert",
		zap.String("wallet", alert.Trade.WalletAddress),
		zap.String("tx_hash", alert.Trade.TxHash),
	)
	return nil
}

func buildTradeEmbed(alert notifier.TradeAlert) *discordgo.MessageEmbed {
	trade := alert.Trade

	emoji, action, color := "🔴", "SOLD", colorSell
	if trade.Side == domain.SideBuy {
		emoji, action, color = "🟢", "BOUGHT", colorBuy
	}

	walletDisplay := domain.ShortAddress(trade.WalletAddress)
	if alert.Label != "" {
		walletDisplay = fmt.Sprintf("%s (%s)", alert.Label, walletDisplay)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Market",
			Value:  trade.Question,
			Inline: false,
		},
		{
			Name:   "Amount",
			Value:  fmt.Sprintf("%s shares @ $%s", money(trade.TokenAmount), price(trade.Price)),
			Inline: true,
		},
		{
			Name:   "Total",
			Value:  "$" + money(trade.UsdcAmount),
			Inline: true,
		},
	}

	if trade.CurrentPrice != nil {
		current := *trade.CurrentPrice
		diff := current - trade.Price
		pct := 0.0
		if trade.Price > 0 {
			pct = diff / trade.Price * 100
		}
		sign := ""
		if diff >= 0 {
			sign = "+"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   arrow(diff) + " Current Price",
			Value:  fmt.Sprintf("$%s (%s%.1f%%)", price(current), sign, pct),
			Inline: true,
		})
	}

	fields = append(fields, &discordgo.MessageEmbedField{
		Name:   "Wallet",
		Value:  walletDisplay,
		Inline: false,
	})

	links := fmt.Sprintf("[View Tx](%s)", trade.TxURL())
	if marketURL := trade.MarketURL(); marketURL != "" {
		links = fmt.Sprintf("[View Market](%s) • %s", marketURL, links)
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:   "Links",
		Value:  links,
		Inline: false,
	})

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s %s %s", emoji, action, trade.Outcome),
		Color:     color,
		Fields:    fields,
		Timestamp: time.Unix(trade.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}

func arrow(diff float64) string {
	switch {
	case diff > 0:
		return "📈"
	case diff < 0:
		return "📉"
	}
	return "➡️"
}

func money(n float64) string {
	return humanize.FormatFloat("#,###.##", n)
}

func price(n float64) string {
	return humanize.FormatFloat("#,###.####", n)
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (dc *DiscordClient) Close() error {
	return nil
}
