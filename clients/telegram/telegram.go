package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"polytracker/clients/notifier"
	"polytracker/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MaxMessageLength is Telegram's limit on a single message's text.
const MaxMessageLength = 4096

// Command is a bot command received from a chat.
type Command struct {
	ChatID int64
	Name   string // without the leading slash or @botname suffix
	Args   string
}

// TelegramClient is the bot transport: it receives commands and sends HTML
// messages. Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	api      *tgbotapi.BotAPI
	stopOnce sync.Once
}

// NewTelegramClient connects to the Bot API and verifies the token.
func NewTelegramClient(logger *zap.Logger, cfg *config.Config) (*TelegramClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	logger.Info("telegram bot initialized", zap.String("username", api.Self.UserName))

	return &TelegramClient{
		logger: logger,
		api:    api,
	}, nil
}

// Username is the bot's @handle as reported by getMe.
func (tc *TelegramClient) Username() string {
	return tc.api.Self.UserName
}

// SendTradeAlert sends a trade alert to the alert's chat.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendTradeAlert(ctx context.Context, alert notifier.TradeAlert) error {
	if err := tc.SendHTML(alert.ChatID, FormatTradeAlert(alert.Trade, alert.Label)); err != nil {
		return err
	}

	tc.logger.Info("sent telegram trade alert",
		zap.Int64("chat_id", alert.ChatID),
		zap.String("wallet", alert.Trade.WalletAddress),
		zap.String("tx_hash", alert.Trade.TxHash),
	)
	return nil
}

// SendHTML sends text in HTML parse mode with link previews disabled,
// splitting it into several messages when it exceeds MaxMessageLength.
func (tc *TelegramClient) SendHTML(chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := tc.api.Send(msg); err != nil {
			return fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}
	return nil
}

// Commands long-polls for updates and emits the bot commands found in them.
// The channel is closed once ctx is done.
func (tc *TelegramClient) Commands(ctx context.Context) <-chan Command {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tc.api.GetUpdatesChan(u)
	out := make(chan Command)

	go func() {
		defer close(out)
		defer tc.stopUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}

				cmd := Command{
					ChatID: update.Message.Chat.ID,
					Name:   strings.ToLower(update.Message.Command()),
					Args:   strings.TrimSpace(update.Message.CommandArguments()),
				}

				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (tc *TelegramClient) stopUpdates() {
	tc.stopOnce.Do(tc.api.StopReceivingUpdates)
}

// Close stops update polling. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	tc.stopUpdates()
	return nil
}

// SplitMessage breaks text into chunks of at most limit bytes, cutting on
// line boundaries. A single line longer than limit is hard-split.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len()+len(line) > limit {
			flush()
		}
		for len(line) > limit {
			cut := runeBoundary(line, limit)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		current.WriteString(line)
	}
	flush()

	return chunks
}

// runeBoundary returns the largest index <= n that does not split a UTF-8
// sequence.
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return n
}
