// Package memory provides an in-memory storage.Store for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"polytracker/internal/domain"
	"polytracker/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type ledgerKey struct {
	chatID int64
	wallet string
	txHash string
}

type broadcastKey struct {
	wallet string
	txHash string
}

type pairKey struct {
	chatID int64
	wallet string
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu         sync.RWMutex
	wallets    []domain.WatchedWallet
	trades     []domain.TradeRecord
	ledger     map[ledgerKey]bool
	broadcasts map[broadcastKey]bool
	cursors    map[string]int64
	snapshots  map[pairKey]map[string]domain.PositionSnapshot
	nextID     int64
	now        func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		ledger:     make(map[ledgerKey]bool),
		broadcasts: make(map[broadcastKey]bool),
		cursors:    make(map[string]int64),
		snapshots:  make(map[pairKey]map[string]domain.PositionSnapshot),
		now:        time.Now,
	}
}

// SetClock replaces the clock used for AddedAt and CreatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Close() error { return nil }

func (s *Store) AddWallet(_ context.Context, chatID int64, address, label string) (bool, error) {
	address = strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.wallets {
		if w.ChatID == chatID && w.Address == address {
			return false, nil
		}
	}
	s.wallets = append(s.wallets, domain.WatchedWallet{
		ChatID:  chatID,
		Address: address,
		Label:   label,
		AddedAt: s.now(),
	})
	return true, nil
}

func (s *Store) RemoveWallet(_ context.Context, chatID int64, address string) (bool, error) {
	address = strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.wallets {
		if w.ChatID == chatID && w.Address == address {
			s.wallets = append(s.wallets[:i], s.wallets[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListWallets(_ context.Context, chatID int64) ([]domain.WatchedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.WatchedWallet
	for _, w := range s.wallets {
		if w.ChatID == chatID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) WatchedAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, w := range s.wallets {
		if !seen[w.Address] {
			seen[w.Address] = true
			out = append(out, w.Address)
		}
	}
	return out, nil
}

func (s *Store) Subscribers(_ context.Context, address string) ([]domain.Subscriber, error) {
	address = strings.ToLower(address)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Subscriber
	for _, w := range s.wallets {
		if w.Address == address {
			out = append(out, domain.Subscriber{ChatID: w.ChatID, Label: w.Label, AddedAt: w.AddedAt})
		}
	}
	return out, nil
}

func (s *Store) InsertTrade(_ context.Context, chatID int64, t domain.Trade) (bool, error) {
	if t.TxHash == "" {
		return false, storage.ErrInvalidInput
	}
	key := ledgerKey{chatID: chatID, wallet: strings.ToLower(t.WalletAddress), txHash: t.TxHash}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger[key] {
		return false, nil
	}
	s.ledger[key] = true
	s.nextID++
	s.trades = append(s.trades, domain.TradeRecord{
		ID:            s.nextID,
		ChatID:        chatID,
		WalletAddress: key.wallet,
		TxHash:        t.TxHash,
		Timestamp:     t.Timestamp,
		Side:          t.Side,
		Outcome:       t.Outcome,
		Question:      t.Question,
		Slug:          t.Slug,
		TokenAmount:   t.TokenAmount,
		UsdcAmount:    t.UsdcAmount,
		Price:         t.Price,
		CreatedAt:     s.now(),
	})
	return true, nil
}

func (s *Store) MarkBroadcast(_ context.Context, t domain.Trade) (bool, error) {
	if t.TxHash == "" {
		return false, storage.ErrInvalidInput
	}
	key := broadcastKey{wallet: strings.ToLower(t.WalletAddress), txHash: t.TxHash}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broadcasts[key] {
		return false, nil
	}
	s.broadcasts[key] = true
	return true, nil
}

func (s *Store) TradeHistory(_ context.Context, chatID int64, limit int) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	var out []domain.TradeRecord
	for _, r := range s.trades {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TradeCount returns how many ledger rows exist in total.
func (s *Store) TradeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

func (s *Store) GetCursor(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.cursors[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return ts, nil
}

func (s *Store) SetCursor(_ context.Context, key string, ts int64) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = ts
	return nil
}

func (s *Store) Snapshots(_ context.Context, chatID int64, address string) (map[string]domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.PositionSnapshot)
	for asset, snap := range s.snapshots[pairKey{chatID, strings.ToLower(address)}] {
		out[asset] = snap
	}
	return out, nil
}

func (s *Store) ReplaceSnapshots(_ context.Context, chatID int64, address string, positions []domain.Position) error {
	s.mu.RLock()
	now := s.now()
	s.mu.RUnlock()
	set := make(map[string]domain.PositionSnapshot, len(positions))
	for _, p := range positions {
		snap := p.Snapshot()
		snap.FetchedAt = now
		set[p.Asset] = snap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[pairKey{chatID, strings.ToLower(address)}] = set
	return nil
}
