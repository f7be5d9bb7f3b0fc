// Package sqlite implements storage.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polytracker/internal/domain"
	"polytracker/internal/storage"

	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	// One connection keeps pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddWallet(ctx context.Context, chatID int64, address, label string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watched_wallets (chat_id, address, label, added_at)
		VALUES (?, ?, ?, ?)`,
		chatID, strings.ToLower(address), label, s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("add wallet: %w", err)
	}
	return affected(res)
}

func (s *Store) RemoveWallet(ctx context.Context, chatID int64, address string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watched_wallets WHERE chat_id = ? AND address = ?`,
		chatID, strings.ToLower(address),
	)
	if err != nil {
		return false, fmt.Errorf("remove wallet: %w", err)
	}
	return affected(res)
}

func (s *Store) ListWallets(ctx context.Context, chatID int64) ([]domain.WatchedWallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, address, label, added_at
		FROM watched_wallets WHERE chat_id = ? ORDER BY added_at, id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var results []domain.WatchedWallet
	for rows.Next() {
		var w domain.WatchedWallet
		var addedAt int64
		if err := rows.Scan(&w.ChatID, &w.Address, &w.Label, &addedAt); err != nil {
			return nil, err
		}
		w.AddedAt = time.Unix(addedAt, 0)
		results = append(results, w)
	}
	return results, rows.Err()
}

func (s *Store) WatchedAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT address FROM watched_wallets`)
	if err != nil {
		return nil, fmt.Errorf("watched addresses: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		results = append(results, addr)
	}
	return results, rows.Err()
}

func (s *Store) Subscribers(ctx context.Context, address string) ([]domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, label, added_at FROM watched_wallets WHERE address = ? ORDER BY id`,
		strings.ToLower(address),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	defer rows.Close()

	var results []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		var addedAt int64
		if err := rows.Scan(&sub.ChatID, &sub.Label, &addedAt); err != nil {
			return nil, err
		}
		sub.AddedAt = time.Unix(addedAt, 0)
		results = append(results, sub)
	}
	return results, rows.Err()
}

func (s *Store) InsertTrade(ctx context.Context, chatID int64, t domain.Trade) (bool, error) {
	if t.TxHash == "" {
		return false, storage.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades (chat_id, wallet_address, tx_hash, timestamp, side,
			outcome, question, slug, token_amount, usdc_amount, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chatID, strings.ToLower(t.WalletAddress), t.TxHash, t.Timestamp, string(t.Side),
		t.Outcome, t.Question, t.Slug, t.TokenAmount, t.UsdcAmount, t.Price,
		s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert trade: %w", err)
	}
	return affected(res)
}

func (s *Store) MarkBroadcast(ctx context.Context, t domain.Trade) (bool, error) {
	if t.TxHash == "" {
		return false, storage.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO broadcasts (wallet_address, tx_hash, created_at)
		VALUES (?, ?, ?)`,
		strings.ToLower(t.WalletAddress), t.TxHash, s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("mark broadcast: %w", err)
	}
	return affected(res)
}

func (s *Store) TradeHistory(ctx context.Context, chatID int64, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, wallet_address, tx_hash, timestamp, side, outcome, question,
			slug, token_amount, usdc_amount, price, created_at
		FROM trades WHERE chat_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("trade history: %w", err)
	}
	defer rows.Close()

	var results []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		var side string
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.ChatID, &r.WalletAddress, &r.TxHash, &r.Timestamp,
			&side, &r.Outcome, &r.Question, &r.Slug, &r.TokenAmount, &r.UsdcAmount,
			&r.Price, &createdAt); err != nil {
			return nil, err
		}
		r.Side = domain.Side(side)
		r.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) GetCursor(ctx context.Context, key string) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_timestamp FROM poll_cursor WHERE key = ?`, key,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return ts, nil
}

func (s *Store) SetCursor(ctx context.Context, key string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_cursor (key, last_timestamp) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET last_timestamp = excluded.last_timestamp`,
		key, ts,
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

func (s *Store) Snapshots(ctx context.Context, chatID int64, address string) (map[string]domain.PositionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, condition_id, size, avg_price, current_value, cash_pnl, percent_pnl,
			cur_price, outcome, title, fetched_at
		FROM position_snapshots WHERE chat_id = ? AND wallet_address = ?`,
		chatID, strings.ToLower(address),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	defer rows.Close()

	results := make(map[string]domain.PositionSnapshot)
	for rows.Next() {
		var p domain.PositionSnapshot
		var fetchedAt int64
		if err := rows.Scan(&p.Asset, &p.ConditionID, &p.Size, &p.AvgPrice, &p.CurrentValue,
			&p.CashPnl, &p.PercentPnl, &p.CurPrice, &p.Outcome, &p.Title, &fetchedAt); err != nil {
			return nil, err
		}
		p.FetchedAt = time.Unix(fetchedAt, 0)
		results[p.Asset] = p
	}
	return results, rows.Err()
}

func (s *Store) ReplaceSnapshots(ctx context.Context, chatID int64, address string, positions []domain.Position) error {
	address = strings.ToLower(address)
	fetchedAt := s.now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM position_snapshots WHERE chat_id = ? AND wallet_address = ?`,
		chatID, address,
	); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO position_snapshots (chat_id, wallet_address, asset, condition_id,
			size, avg_price, current_value, cash_pnl, percent_pnl, cur_price, outcome, title,
			fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, chatID, address, p.Asset, p.ConditionID,
			p.Size, p.AvgPrice, p.CurrentValue, p.CashPnl, p.PercentPnl, p.CurPrice,
			p.Outcome, p.Title, fetchedAt); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", p.Asset, err)
		}
	}

	return tx.Commit()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
