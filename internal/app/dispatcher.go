package app

import (
	"context"
	"errors"
	"fmt"

	"polytracker/clients/notifier"
	"polytracker/internal/domain"
	"polytracker/internal/storage"

	"go.uber.org/zap"
)

// PriceSource looks up a token's current price. ok is false when unknown.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, tokenID string) (float64, bool)
}

// AlertSender delivers a single trade alert.
type AlertSender interface {
	SendTradeAlert(ctx context.Context, alert notifier.TradeAlert) error
}

// TradeDispatcher fans a polled trade out to every subscriber of its wallet.
// The ledger insert is the only dedup: an alert is sent to a subscriber only
// when the trade's row was newly written for them. Subscriptions that started
// after the trade are skipped. The broadcast channel is deduped per wallet
// and tx through MarkBroadcast.
type TradeDispatcher struct {
	logger    *zap.Logger
	wallets   storage.WalletStore
	ledger    storage.TradeLedger
	prices    PriceSource
	chat      AlertSender
	broadcast AlertSender
	metrics   *Metrics
}

// NewTradeDispatcher builds a dispatcher. prices and broadcast may be nil.
func NewTradeDispatcher(
	logger *zap.Logger,
	wallets storage.WalletStore,
	ledger storage.TradeLedger,
	prices PriceSource,
	chat AlertSender,
	broadcast AlertSender,
	metrics *Metrics,
) *TradeDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeDispatcher{
		logger:    logger,
		wallets:   wallets,
		ledger:    ledger,
		prices:    prices,
		chat:      chat,
		broadcast: broadcast,
		metrics:   orNewMetrics(metrics),
	}
}

// HandleTrade implements TradeHandler. Send failures are logged and do not
// undo the ledger row; store failures are returned joined.
func (d *TradeDispatcher) HandleTrade(ctx context.Context, trade domain.Trade) error {
	subscribers, err := d.wallets.Subscribers(ctx, trade.WalletAddress)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}

	var (
		errs       []error
		enriched   *domain.Trade
		firstLabel string
	)

	for _, sub := range subscribers {
		if !sub.WatchedBefore(trade.Timestamp) {
			d.logger.Debug("skipping trade older than subscription",
				zap.Int64("chatID", sub.ChatID),
				zap.String("tx", shortID(trade.TxHash)),
			)
			continue
		}
		inserted, err := d.ledger.InsertTrade(ctx, sub.ChatID, trade)
		if err != nil {
			errs = append(errs, fmt.Errorf("record trade for chat %d: %w", sub.ChatID, err))
			continue
		}
		if !inserted {
			d.metrics.DuplicateTrades.Inc()
			continue
		}

		if enriched == nil {
			t := d.withPrice(ctx, trade)
			enriched = &t
			firstLabel = sub.Label
		}

		alert := notifier.TradeAlert{ChatID: sub.ChatID, Label: sub.Label, Trade: *enriched}
		d.send(ctx, "telegram", d.chat, alert)
	}

	if enriched != nil && d.broadcast != nil {
		first, err := d.ledger.MarkBroadcast(ctx, trade)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("record broadcast: %w", err))
		case first:
			d.send(ctx, "discord", d.broadcast, notifier.TradeAlert{Label: firstLabel, Trade: *enriched})
		}
	}

	return errors.Join(errs...)
}

func (d *TradeDispatcher) withPrice(ctx context.Context, trade domain.Trade) domain.Trade {
	if d.prices == nil || trade.Asset == "" {
		return trade
	}
	if price, ok := d.prices.GetCurrentPrice(ctx, trade.Asset); ok {
		return trade.WithCurrentPrice(price)
	}
	return trade
}

func (d *TradeDispatcher) send(ctx context.Context, channel string, sender AlertSender, alert notifier.TradeAlert) {
	if sender == nil {
		return
	}
	if err := sender.SendTradeAlert(ctx, alert); err != nil {
		d.metrics.AlertFailures.WithLabelValues(channel).Inc()
		d.logger.Error("failed to send trade alert",
			zap.String("channel", channel),
			zap.Int64("chatID", alert.ChatID),
			zap.String("tx", shortID(alert.Trade.TxHash)),
			zap.Error(err),
		)
		return
	}
	d.metrics.AlertsSent.WithLabelValues(channel).Inc()
	d.logger.Info("trade alert sent",
		zap.String("channel", channel),
		zap.Int64("chatID", alert.ChatID),
		zap.String("wallet", alert.Trade.WalletAddress),
		zap.String("side", string(alert.Trade.Side)),
		zap.Float64("usdc", alert.Trade.UsdcAmount),
		zap.String("tx", shortID(alert.Trade.TxHash)),
	)
}
