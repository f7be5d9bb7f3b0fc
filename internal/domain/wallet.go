package domain

import "time"

// WatchedWallet is one subscriber's subscription to an address.
type WatchedWallet struct {
	ChatID  int64
	Address string
	Label   string
	AddedAt time.Time
}

// Subscriber is a chat watching a given address, with its label for it.
type Subscriber struct {
	ChatID  int64
	Label   string
	AddedAt time.Time
}

// WatchedBefore reports whether the subscription existed at unix time ts.
// A zero AddedAt counts as always watching.
func (s Subscriber) WatchedBefore(ts int64) bool {
	return s.AddedAt.IsZero() || s.AddedAt.Unix() <= ts
}

// TradeRecord is a delivered trade as stored in the ledger.
type TradeRecord struct {
	ID            int64
	ChatID        int64
	WalletAddress string
	TxHash        string
	Timestamp     int64
	Side          Side
	Outcome       string
	Question      string
	Slug          string
	TokenAmount   float64
	UsdcAmount    float64
	Price         float64
	CreatedAt     time.Time
}
