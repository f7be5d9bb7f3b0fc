// Package domain holds the tracker's data model: normalized trades, watched
// wallets, persisted trade rows and position snapshots.
package domain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned by NormalizeAddress for anything that is not
// a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts only the exact feed values BUY and SELL.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// Trade is a feed activity record normalized to a buy or sell fill.
type Trade struct {
	TxHash        string
	Timestamp     int64 // epoch seconds
	WalletAddress string
	Side          Side
	Outcome       string
	Question      string
	Slug          string
	EventSlug     string
	TokenAmount   float64
	UsdcAmount    float64
	Price         float64
	ConditionID   string
	Asset         string

	// CurrentPrice is filled at alert time by a CLOB lookup; nil when unknown.
	CurrentPrice *float64
}

// MarketURL links to the event page, preferring the event slug.
func (t Trade) MarketURL() string {
	slug := t.EventSlug
	if slug == "" {
		slug = t.Slug
	}
	if slug == "" {
		return ""
	}
	return "https://polymarket.com/event/" + slug
}

// TxURL links to the transaction on the block explorer.
func (t Trade) TxURL() string {
	return "https://polygonscan.com/tx/" + t.TxHash
}

// WithCurrentPrice returns a copy of t carrying the given price.
func (t Trade) WithCurrentPrice(price float64) Trade {
	t.CurrentPrice = &price
	return t
}

// NormalizeAddress validates a hex wallet address and lowercases it.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		addr = "0x" + addr
	}
	return strings.ToLower(addr), nil
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// CursorKey is the poll cursor key for a wallet.
func CursorKey(address string) string {
	return "activity_" + strings.ToLower(address)
}
