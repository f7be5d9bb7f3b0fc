package notifier

import (
	"context"
	"errors"

	"polytracker/internal/domain"
)

// TradeAlert is one trade addressed to one subscriber chat.
type TradeAlert struct {
	ChatID int64
	Label  string // Subscriber's label for the wallet; may be empty
	Trade  domain.Trade
}

// WalletDisplay is the label when set, otherwise the shortened address.
func (a TradeAlert) WalletDisplay() string {
	if a.Label != "" {
		return a.Label
	}
	return domain.ShortAddress(a.Trade.WalletAddress)
}

// Notifier is the interface for sending trade alerts to various channels.
type Notifier interface {
	// SendTradeAlert delivers a trade alert.
	SendTradeAlert(ctx context.Context, alert TradeAlert) error

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendTradeAlert sends the alert to all registered notifiers. A failing
// notifier does not stop the rest; all failures are joined.
func (m *MultiNotifier) SendTradeAlert(ctx context.Context, alert TradeAlert) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.SendTradeAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
