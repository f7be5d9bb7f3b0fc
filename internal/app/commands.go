package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"polytracker/clients/telegram"
	"polytracker/internal/domain"
	"polytracker/internal/storage"

	"go.uber.org/zap"
)

const (
	defaultHistoryCount = 10
	maxHistoryCount     = 50
)

const helpText = "👋 <b>Polymarket Wallet Tracker</b>\n\n" +
	"Track Polymarket trades from any wallet and get real-time alerts.\n\n" +
	"<b>Commands:</b>\n" +
	"/watch &lt;address&gt; [label] — Start tracking a wallet\n" +
	"/unwatch &lt;address&gt; — Stop tracking a wallet\n" +
	"/list — Show tracked wallets\n" +
	"/positions &lt;address&gt; — View current positions\n" +
	"/history [count] — Recent trade history\n" +
	"/status — Bot status"

// Messenger sends an HTML reply to a chat.
type Messenger interface {
	SendHTML(chatID int64, text string) error
}

// PositionDiffer produces a subscriber's position report for an address.
type PositionDiffer interface {
	Diff(ctx context.Context, chatID int64, address string) (domain.PositionReport, error)
}

// PollerStatus reports poller health for /status.
type PollerStatus interface {
	Stats() PollerStats
}

// CommandHandler answers bot commands for a single chat at a time.
type CommandHandler struct {
	logger    *zap.Logger
	messenger Messenger
	wallets   storage.WalletStore
	ledger    storage.TradeLedger
	positions PositionDiffer
	status    PollerStatus
	metrics   *Metrics
	now       func() time.Time
}

// NewCommandHandler builds a handler. status may be nil.
func NewCommandHandler(
	logger *zap.Logger,
	messenger Messenger,
	wallets storage.WalletStore,
	ledger storage.TradeLedger,
	positions PositionDiffer,
	status PollerStatus,
	metrics *Metrics,
) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{
		logger:    logger,
		messenger: messenger,
		wallets:   wallets,
		ledger:    ledger,
		positions: positions,
		status:    status,
		metrics:   orNewMetrics(metrics),
		now:       time.Now,
	}
}

// Handle runs cmd and sends its reply. Unknown commands are ignored.
func (h *CommandHandler) Handle(ctx context.Context, cmd telegram.Command) {
	var (
		reply string
		err   error
	)

	switch cmd.Name {
	case "start", "help":
		reply = helpText
	case "watch":
		reply, err = h.watch(ctx, cmd)
	case "unwatch":
		reply, err = h.unwatch(ctx, cmd)
	case "list":
		reply, err = h.list(ctx, cmd)
	case "history":
		reply, err = h.history(ctx, cmd)
	case "status":
		reply, err = h.statusReply(ctx, cmd)
	case "positions":
		reply = h.positionsReply(ctx, cmd)
	default:
		h.logger.Debug("ignoring unknown command",
			zap.String("command", cmd.Name),
			zap.Int64("chatID", cmd.ChatID),
		)
		return
	}
	h.metrics.Commands.WithLabelValues(cmd.Name).Inc()

	if err != nil {
		h.logger.Error("command failed",
			zap.String("command", cmd.Name),
			zap.Int64("chatID", cmd.ChatID),
			zap.Error(err),
		)
		reply = "❌ Something went wrong. Please try again later."
	}
	h.reply(cmd.ChatID, reply)
}

func (h *CommandHandler) reply(chatID int64, text string) {
	if err := h.messenger.SendHTML(chatID, text); err != nil {
		h.logger.Warn("failed to send command reply",
			zap.Int64("chatID", chatID),
			zap.Error(err),
		)
	}
}

func (h *CommandHandler) watch(ctx context.Context, cmd telegram.Command) (string, error) {
	fields := strings.Fields(cmd.Args)
	if len(fields) == 0 {
		return "Usage: /watch &lt;address&gt; [label]", nil
	}

	address, err := domain.NormalizeAddress(fields[0])
	if err != nil {
		return "❌ Invalid Ethereum address.", nil
	}
	label := strings.Join(fields[1:], " ")

	added, err := h.wallets.AddWallet(ctx, cmd.ChatID, address, label)
	if err != nil {
		return "", fmt.Errorf("add wallet: %w", err)
	}
	if !added {
		return "ℹ️ This address is already being watched.", nil
	}

	h.logger.Info("wallet watched",
		zap.Int64("chatID", cmd.ChatID),
		zap.String("wallet", address),
		zap.String("label", label),
	)

	reply := fmt.Sprintf("✅ Now watching <code>%s</code>", address)
	if label != "" {
		reply += fmt.Sprintf(" (%s)", telegram.EscapeHTML(label))
	}
	return reply, nil
}

func (h *CommandHandler) unwatch(ctx context.Context, cmd telegram.Command) (string, error) {
	fields := strings.Fields(cmd.Args)
	if len(fields) == 0 {
		return "Usage: /unwatch &lt;address&gt;", nil
	}

	address, err := domain.NormalizeAddress(fields[0])
	if err != nil {
		return "❌ Invalid Ethereum address.", nil
	}

	removed, err := h.wallets.RemoveWallet(ctx, cmd.ChatID, address)
	if err != nil {
		return "", fmt.Errorf("remove wallet: %w", err)
	}
	if !removed {
		return "ℹ️ This address was not being watched.", nil
	}

	h.logger.Info("wallet unwatched",
		zap.Int64("chatID", cmd.ChatID),
		zap.String("wallet", address),
	)
	return fmt.Sprintf("✅ Stopped watching <code>%s</code>", address), nil
}

func (h *CommandHandler) list(ctx context.Context, cmd telegram.Command) (string, error) {
	wallets, err := h.wallets.ListWallets(ctx, cmd.ChatID)
	if err != nil {
		return "", fmt.Errorf("list wallets: %w", err)
	}
	return telegram.FormatWatchList(wallets), nil
}

func (h *CommandHandler) history(ctx context.Context, cmd telegram.Command) (string, error) {
	count := parseHistoryCount(cmd.Args)

	records, err := h.ledger.TradeHistory(ctx, cmd.ChatID, count)
	if err != nil {
		return "", fmt.Errorf("trade history: %w", err)
	}
	return telegram.FormatTradeHistory(records), nil
}

// parseHistoryCount reads the optional /history count: missing, non-numeric
// or below 1 gives the default, anything above the cap is clamped.
func parseHistoryCount(args string) int {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return defaultHistoryCount
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return defaultHistoryCount
	}
	return min(n, maxHistoryCount)
}

func (h *CommandHandler) statusReply(ctx context.Context, cmd telegram.Command) (string, error) {
	wallets, err := h.wallets.ListWallets(ctx, cmd.ChatID)
	if err != nil {
		return "", fmt.Errorf("list wallets: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("🤖 <b>Bot Status</b>\n\n")
	fmt.Fprintf(&sb, "Tracked wallets: %d\n", len(wallets))
	sb.WriteString("Status: Running")

	if h.status != nil {
		stats := h.status.Stats()
		if !stats.LastSuccessAt.IsZero() {
			ago := h.now().Sub(stats.LastSuccessAt).Round(time.Second)
			fmt.Fprintf(&sb, "\nLast poll: %s ago", ago)
		}
		if stats.ConsecutiveFailures > 0 {
			fmt.Fprintf(&sb, "\nPoll failures: %d (backoff %s)", stats.ConsecutiveFailures, stats.Backoff)
		}
	}
	return sb.String(), nil
}

func (h *CommandHandler) positionsReply(ctx context.Context, cmd telegram.Command) string {
	fields := strings.Fields(cmd.Args)
	if len(fields) == 0 {
		return "Usage: /positions &lt;address&gt;"
	}

	address, err := domain.NormalizeAddress(fields[0])
	if err != nil {
		return "❌ Invalid Ethereum address."
	}

	h.reply(cmd.ChatID, "🔍 Fetching all positions...")

	report, err := h.positions.Diff(ctx, cmd.ChatID, address)
	if err != nil {
		h.logger.Error("failed to fetch positions",
			zap.Int64("chatID", cmd.ChatID),
			zap.String("wallet", address),
			zap.Error(err),
		)
		return "❌ Failed to fetch positions. Please try again later."
	}

	return telegram.FormatPositions(report, h.labelFor(ctx, cmd.ChatID, address))
}

// labelFor returns the chat's label for address, or "" if it is not watched.
func (h *CommandHandler) labelFor(ctx context.Context, chatID int64, address string) string {
	wallets, err := h.wallets.ListWallets(ctx, chatID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Debug("label lookup failed", zap.Error(err))
		}
		return ""
	}
	for _, w := range wallets {
		if strings.EqualFold(w.Address, address) {
			return w.Label
		}
	}
	return ""
}
