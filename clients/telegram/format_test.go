package telegram

import (
	"strings"
	"testing"

	"polytracker/internal/domain"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

func sampleTrade() domain.Trade {
	return domain.Trade{
		TxHash:        "0xdeadbeef",
		Timestamp:     1700000000,
		WalletAddress: testWallet,
		Side:          domain.SideBuy,
		Outcome:       "Yes",
		Question:      "Will <BTC> hit $100k?",
		Slug:          "btc-100k",
		EventSlug:     "btc-event",
		TokenAmount:   1500,
		UsdcAmount:    675,
		Price:         0.45,
	}
}

func TestFormatTradeAlert_Buy(t *testing.T) {
	msg := FormatTradeAlert(sampleTrade(), "")

	checks := []string{
		"🟢 <b>BOUGHT Yes</b>",
		"\"Will &lt;BTC&gt; hit $100k?\"",
		"1,500.00 shares @ $0.4500",
		"<b>Total:</b> $675.00",
		"<b>Wallet:</b> 0x1234...5678",
		`<a href="https://polymarket.com/event/btc-event">View Market</a> | `,
		`<a href="https://polygonscan.com/tx/0xdeadbeef">View Tx</a>`,
	}
	for _, want := range checks {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Current:") {
		t.Error("expected no current price line without a price")
	}
}

func TestFormatTradeAlert_SellWithLabelAndPrice(t *testing.T) {
	trade := sampleTrade()
	trade.Side = domain.SideSell
	trade = trade.WithCurrentPrice(0.36)

	msg := FormatTradeAlert(trade, "Big & Bold")

	if !strings.HasPrefix(msg, "🔴 <b>SOLD Yes</b>") {
		t.Errorf("unexpected header: %s", msg)
	}
	if !strings.Contains(msg, "📉 <b>Current:</b> $0.3600 (-20.0%)") {
		t.Errorf("expected current price line, got:\n%s", msg)
	}
	if !strings.Contains(msg, "Big &amp; Bold (0x1234...5678)") {
		t.Errorf("expected escaped label with short address, got:\n%s", msg)
	}
}

func TestFormatTradeAlert_NoSlug(t *testing.T) {
	trade := sampleTrade()
	trade.Slug = ""
	trade.EventSlug = ""

	msg := FormatTradeAlert(trade, "")

	if strings.Contains(msg, "View Market") {
		t.Error("expected no market link without a slug")
	}
	if !strings.Contains(msg, "View Tx") {
		t.Error("expected tx link")
	}
}

func TestPriceChange(t *testing.T) {
	tests := []struct {
		fill, current float64
		arrow, change string
	}{
		{0.50, 0.60, "📈", "+20.0%"},
		{0.50, 0.40, "📉", "-20.0%"},
		{0.50, 0.50, "➡️", "+0.0%"},
		{0, 0.50, "📈", "+0.0%"},
	}

	for _, tt := range tests {
		arrow, change := priceChange(tt.fill, tt.current)
		if arrow != tt.arrow || change != tt.change {
			t.Errorf("priceChange(%v, %v) = %s %s, want %s %s", tt.fill, tt.current, arrow, change, tt.arrow, tt.change)
		}
	}
}

func TestFormatTradeHistory(t *testing.T) {
	if got := FormatTradeHistory(nil); got != "No trades found." {
		t.Errorf("unexpected empty history: %s", got)
	}

	records := []domain.TradeRecord{
		{
			WalletAddress: testWallet,
			Timestamp:     1700000000,
			Side:          domain.SideSell,
			Outcome:       "No",
			Question:      strings.Repeat("q", 70),
			UsdcAmount:    1234.5,
		},
	}

	msg := FormatTradeHistory(records)

	if !strings.HasPrefix(msg, "📜 <b>Recent Trades</b> (1)") {
		t.Errorf("unexpected header: %s", msg)
	}
	if !strings.Contains(msg, "🔴 <b>SELL</b> No — $1,234.50") {
		t.Errorf("unexpected trade line:\n%s", msg)
	}
	if !strings.Contains(msg, strings.Repeat("q", 60)+"...") {
		t.Errorf("expected truncated question:\n%s", msg)
	}
	if !strings.Contains(msg, "0x1234...5678 · 2023-11-14 22:13") {
		t.Errorf("expected address and UTC date:\n%s", msg)
	}
}

func TestFormatWatchList(t *testing.T) {
	if got := FormatWatchList(nil); got != "No wallets being tracked. Use /watch to add one." {
		t.Errorf("unexpected empty list: %s", got)
	}

	msg := FormatWatchList([]domain.WatchedWallet{
		{Address: "0xaaa", Label: "alpha"},
		{Address: "0xbbb"},
	})

	if !strings.Contains(msg, "📋 <b>Watched Wallets</b> (2)") {
		t.Errorf("unexpected header: %s", msg)
	}
	if !strings.Contains(msg, "• <code>0xaaa</code> — alpha\n") {
		t.Errorf("expected labelled entry:\n%s", msg)
	}
	if !strings.Contains(msg, "• <code>0xbbb</code>\n") {
		t.Errorf("expected unlabelled entry:\n%s", msg)
	}
}

func TestFormatPositions_Empty(t *testing.T) {
	got := FormatPositions(domain.PositionReport{Address: testWallet}, "")
	if got != "No open positions found." {
		t.Errorf("unexpected text: %s", got)
	}
}

func TestFormatPositions(t *testing.T) {
	report := domain.PositionReport{
		Address: testWallet,
		Positions: []domain.PositionDiff{
			{
				Position: domain.Position{Asset: "a", Outcome: "Yes", Title: "Market A", Size: 15, AvgPrice: 0.4, CurrentValue: 9, CashPnl: 3, PercentPnl: 50, CurPrice: 0.6},
				SizeDiff: 5,
				PnlDiff:  1,
			},
			{
				Position: domain.Position{Asset: "c", Outcome: "No", Title: "Market C", Size: 2, AvgPrice: 0.5, CurrentValue: 1, CashPnl: 0, CurPrice: 0.5, Redeemable: true},
				IsNew:    true,
			},
		},
		Closed: []domain.PositionSnapshot{
			{Asset: "b", Outcome: "Yes", Title: "Market B", Size: 5},
		},
	}

	msg := FormatPositions(report, "whale")

	checks := []string{
		"💼 <b>Positions for whale (0x1234...5678)</b>",
		"Total Value: $10.00",
		"Total P&amp;L: +$3.00 (+42.9%)",
		"Positions: 2",
		"<b>❌ Closed Positions:</b>",
		"• <b>Yes</b> - Market B\n  Closed: 5.00 shares",
		"1. 📊 <b>Yes</b>",
		"Size: 15.00 (+5.00) @ avg $0.4000",
		"📈 P&amp;L: +$3.00 (+$1.00) [+50.0%]",
		"2. 🆕 <b>No</b>",
		"✅ Redeemable",
	}
	for _, want := range checks {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
	if strings.Index(msg, "Closed Positions") > strings.Index(msg, "Top Positions") {
		t.Error("expected closed positions before top positions")
	}
}

func TestFormatPositions_Caps(t *testing.T) {
	report := domain.PositionReport{Address: testWallet}
	for i := 0; i < 12; i++ {
		report.Positions = append(report.Positions, domain.PositionDiff{Position: domain.Position{Outcome: "Yes", Title: "M"}})
	}
	for i := 0; i < 5; i++ {
		report.Closed = append(report.Closed, domain.PositionSnapshot{Outcome: "No", Title: "C"})
	}

	msg := FormatPositions(report, "")

	if !strings.Contains(msg, "... and 2 more positions") {
		t.Errorf("expected positions overflow line:\n%s", msg)
	}
	if !strings.Contains(msg, "... and 2 more closed") {
		t.Errorf("expected closed overflow line:\n%s", msg)
	}
	if strings.Contains(msg, "11. ") {
		t.Error("expected at most 10 positions listed")
	}
}

func TestEscapeHTML(t *testing.T) {
	got := escapeHTML(`<a href="x">Tom & Jerry</a>`)
	want := "&lt;a href=&quot;x&quot;&gt;Tom &amp; Jerry&lt;/a&gt;"
	if got != want {
		t.Errorf("escapeHTML = %s, want %s", got, want)
	}
}
