package telegram

import (
	"fmt"
	"math"
	"strings"
	"time"

	"polytracker/internal/domain"

	"github.com/dustin/go-humanize"
)

const (
	maxClosedShown    = 3
	maxPositionsShown = 10
)

// FormatTradeAlert renders a trade alert as Telegram HTML.
func FormatTradeAlert(trade domain.Trade, label string) string {
	emoji, action := sideEmoji(trade.Side), "SOLD"
	if trade.Side == domain.SideBuy {
		action = "BOUGHT"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s %s</b>\n", emoji, action, escapeHTML(trade.Outcome))
	fmt.Fprintf(&sb, "\n📊 <b>Market:</b> \"%s\"\n", escapeHTML(trade.Question))
	fmt.Fprintf(&sb, "💰 <b>Amount:</b> %s shares @ $%s\n", money(trade.TokenAmount), price(trade.Price))
	fmt.Fprintf(&sb, "💵 <b>Total:</b> $%s\n", money(trade.UsdcAmount))

	if trade.CurrentPrice != nil {
		dir, change := priceChange(trade.Price, *trade.CurrentPrice)
		fmt.Fprintf(&sb, "%s <b>Current:</b> $%s (%s)\n", dir, price(*trade.CurrentPrice), change)
	}

	fmt.Fprintf(&sb, "\n👛 <b>Wallet:</b> %s\n", walletDisplay(trade.WalletAddress, label))

	sb.WriteString("\n")
	if marketURL := trade.MarketURL(); marketURL != "" {
		fmt.Fprintf(&sb, "<a href=\"%s\">View Market</a> | ", marketURL)
	}
	fmt.Fprintf(&sb, "<a href=\"%s\">View Tx</a>", trade.TxURL())

	return sb.String()
}

// FormatTradeHistory renders the ledger rows returned by /history.
func FormatTradeHistory(trades []domain.TradeRecord) string {
	if len(trades) == 0 {
		return "No trades found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 <b>Recent Trades</b> (%d)\n\n", len(trades))

	for _, t := range trades {
		date := time.Unix(t.Timestamp, 0).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&sb, "%s <b>%s</b> %s — $%s\n", sideEmoji(t.Side), t.Side, escapeHTML(t.Outcome), money(t.UsdcAmount))
		fmt.Fprintf(&sb, "   %s\n", escapeHTML(truncate(t.Question, 60)))
		fmt.Fprintf(&sb, "   %s · %s\n\n", domain.ShortAddress(t.WalletAddress), date)
	}

	return sb.String()
}

// FormatWatchList renders the /list reply.
func FormatWatchList(wallets []domain.WatchedWallet) string {
	if len(wallets) == 0 {
		return "No wallets being tracked. Use /watch to add one."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Watched Wallets</b> (%d)\n\n", len(wallets))
	for _, w := range wallets {
		fmt.Fprintf(&sb, "• <code>%s</code>", w.Address)
		if w.Label != "" {
			fmt.Fprintf(&sb, " — %s", escapeHTML(w.Label))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatPositions renders a position report with changes since the last query.
func FormatPositions(report domain.PositionReport, label string) string {
	positions, closed := report.Positions, report.Closed
	if len(positions) == 0 && len(closed) == 0 {
		return "No open positions found."
	}

	var totalValue, totalPnl float64
	for _, p := range positions {
		totalValue += p.CurrentValue
		totalPnl += p.CashPnl
	}

	pnlPct := 0.0
	if cost := totalValue - totalPnl; cost != 0 {
		pnlPct = totalPnl / cost * 100
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💼 <b>Positions for %s</b>\n\n", walletDisplay(report.Address, label))
	sb.WriteString("📊 <b>Summary:</b>\n")
	fmt.Fprintf(&sb, "   Total Value: $%s\n", money(totalValue))
	fmt.Fprintf(&sb, "   Total P&amp;L: %s$%s (%s%.1f%%)\n", sign(totalPnl), money(totalPnl), sign(totalPnl), pnlPct)
	fmt.Fprintf(&sb, "   Positions: %d\n\n", len(positions))

	if len(closed) > 0 {
		sb.WriteString("<b>❌ Closed Positions:</b>\n\n")
		for i, p := range closed {
			if i == maxClosedShown {
				break
			}
			fmt.Fprintf(&sb, "• <b>%s</b> - %s\n", escapeHTML(p.Outcome), escapeHTML(truncate(p.Title, 40)))
			fmt.Fprintf(&sb, "  Closed: %s shares\n\n", money(p.Size))
		}
		if len(closed) > maxClosedShown {
			fmt.Fprintf(&sb, "... and %d more closed\n\n", len(closed)-maxClosedShown)
		}
	}

	if len(positions) > 0 {
		sb.WriteString("<b>Top Positions:</b>\n\n")
	}

	for i, p := range positions {
		if i == maxPositionsShown {
			break
		}

		prefix := ""
		if p.IsNew {
			prefix = "🆕 "
		} else if significant(p.SizeDiff) {
			prefix = "📊 "
		}

		fmt.Fprintf(&sb, "%d. %s<b>%s</b>\n", i+1, prefix, escapeHTML(p.Outcome))
		fmt.Fprintf(&sb, "   %s\n", escapeHTML(truncate(p.Title, 50)))

		if significant(p.SizeDiff) {
			fmt.Fprintf(&sb, "   Size: %s (%s%s) @ avg $%s\n", money(p.Size), plus(p.SizeDiff), money(p.SizeDiff), price(p.AvgPrice))
		} else {
			fmt.Fprintf(&sb, "   Size: %s @ avg $%s\n", money(p.Size), price(p.AvgPrice))
		}

		pnlArrow := arrow(p.CashPnl)
		if significant(p.PnlDiff) {
			fmt.Fprintf(&sb, "   %s P&amp;L: %s$%s (%s$%s) [%s%.1f%%]\n",
				pnlArrow, sign(p.CashPnl), money(p.CashPnl), plus(p.PnlDiff), money(p.PnlDiff), sign(p.CashPnl), p.PercentPnl)
		} else {
			fmt.Fprintf(&sb, "   %s P&amp;L: %s$%s (%s%.1f%%)\n",
				pnlArrow, sign(p.CashPnl), money(p.CashPnl), sign(p.CashPnl), p.PercentPnl)
		}

		fmt.Fprintf(&sb, "   Current: $%s @ $%s\n", money(p.CurrentValue), price(p.CurPrice))
		if p.Redeemable {
			sb.WriteString("   ✅ Redeemable\n")
		}
		sb.WriteString("\n")
	}

	if len(positions) > maxPositionsShown {
		fmt.Fprintf(&sb, "... and %d more positions\n", len(positions)-maxPositionsShown)
	}

	return sb.String()
}

// priceChange returns the direction arrow and signed percent change from
// the fill price to the current price.
func priceChange(fill, current float64) (string, string) {
	diff := current - fill
	pct := 0.0
	if fill > 0 {
		pct = diff / fill * 100
	}
	return arrow(diff), fmt.Sprintf("%s%.1f%%", sign(diff), pct)
}

// money formats n with thousands separators and two decimals.
func money(n float64) string {
	return humanize.FormatFloat("#,###.##", n)
}

func price(n float64) string {
	return humanize.FormatFloat("#,###.####", n)
}

func sideEmoji(side domain.Side) string {
	if side == domain.SideBuy {
		return "🟢"
	}
	return "🔴"
}

func arrow(diff float64) string {
	switch {
	case diff > 0:
		return "📈"
	case diff < 0:
		return "📉"
	}
	return "➡️"
}

// sign is "+" for non-negative values; negatives carry their own minus.
func sign(n float64) string {
	if n >= 0 {
		return "+"
	}
	return ""
}

// plus is "+" for strictly positive values.
func plus(n float64) string {
	if n > 0 {
		return "+"
	}
	return ""
}

func significant(diff float64) bool {
	return math.Abs(diff) > 0.01
}

func walletDisplay(address, label string) string {
	if label != "" {
		return fmt.Sprintf("%s (%s)", escapeHTML(label), domain.ShortAddress(address))
	}
	return domain.ShortAddress(address)
}

// truncate cuts s to n runes, appending "..." when shortened.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
)

// escapeHTML escapes text for Telegram's HTML parse mode.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// EscapeHTML is exported for command replies built outside this package.
func EscapeHTML(s string) string {
	return escapeHTML(s)
}
