package clients

import (
	"fmt"

	"polytracker/clients/discord"
	"polytracker/clients/notifier"
	"polytracker/clients/polymarketapi"
	"polytracker/clients/telegram"
	"polytracker/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord    *discord.DiscordClient
	Telegram   *telegram.TelegramClient
	Broadcast  notifier.Notifier // Channel-wide notifiers, sent once per new trade
	Polymarket *polymarketapi.PolymarketApiClient
}

func NewClients(logger *zap.Logger, cfg *config.Config) (*Clients, error) {
	telegramClient, err := telegram.NewTelegramClient(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	discordClient := discord.NewDiscordClient(logger, cfg)

	var broadcast []notifier.Notifier
	if discordClient.Enabled() {
		broadcast = append(broadcast, discordClient)
	}

	return &Clients{
		Logger:     logger,
		Discord:    discordClient,
		Telegram:   telegramClient,
		Broadcast:  notifier.NewMultiNotifier(broadcast...),
		Polymarket: polymarketapi.NewPolymarketApiClient(logger, cfg),
	}, nil
}

// Close releases every client.
func (c *Clients) Close() error {
	if err := c.Broadcast.Close(); err != nil {
		return err
	}
	return c.Telegram.Close()
}
