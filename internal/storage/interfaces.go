// Package storage defines the persistence contracts used by the tracker.
// Implementations live in sqlite (production) and memory (tests).
package storage

import (
	"context"

	"polytracker/internal/domain"
)

// WalletStore manages watched_wallets.
type WalletStore interface {
	// AddWallet subscribes chatID to address. Returns false if the pair already exists.
	AddWallet(ctx context.Context, chatID int64, address, label string) (bool, error)

	// RemoveWallet unsubscribes chatID from address. Returns false if nothing was removed.
	RemoveWallet(ctx context.Context, chatID int64, address string) (bool, error)

	// ListWallets returns the chat's subscriptions, oldest first.
	ListWallets(ctx context.Context, chatID int64) ([]domain.WatchedWallet, error)

	// WatchedAddresses returns every distinct address with at least one subscriber.
	WatchedAddresses(ctx context.Context) ([]string, error)

	// Subscribers returns the chats watching address.
	Subscribers(ctx context.Context, address string) ([]domain.Subscriber, error)
}

// TradeLedger is the append-only record of delivered trades.
type TradeLedger interface {
	// InsertTrade records trade for chatID if (chatID, wallet, tx hash) is absent.
	// The returned bool is true only when a new row was written.
	InsertTrade(ctx context.Context, chatID int64, trade domain.Trade) (bool, error)

	// MarkBroadcast records that trade went to the shared broadcast channel.
	// Returns true only the first time a (wallet, tx hash) pair is marked.
	MarkBroadcast(ctx context.Context, trade domain.Trade) (bool, error)

	// TradeHistory returns up to limit trades for chatID, newest first.
	TradeHistory(ctx context.Context, chatID int64, limit int) ([]domain.TradeRecord, error)
}

// CursorStore persists per-key poll progress.
type CursorStore interface {
	// GetCursor returns the last processed timestamp. Returns ErrNotFound if unset.
	GetCursor(ctx context.Context, key string) (int64, error)

	// SetCursor stores ts for key, overwriting any prior value.
	SetCursor(ctx context.Context, key string, ts int64) error
}

// SnapshotStore persists position snapshots per (subscriber, address).
type SnapshotStore interface {
	// Snapshots returns the saved snapshot set keyed by asset.
	Snapshots(ctx context.Context, chatID int64, address string) (map[string]domain.PositionSnapshot, error)

	// ReplaceSnapshots atomically swaps the pair's snapshot set for positions.
	ReplaceSnapshots(ctx context.Context, chatID int64, address string, positions []domain.Position) error
}

// Store is the full persistence surface.
type Store interface {
	WalletStore
	TradeLedger
	CursorStore
	SnapshotStore
	Close() error
}
