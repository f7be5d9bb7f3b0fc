package app

import (
	"polytracker/clients/polymarketapi"
	"polytracker/internal/domain"
)

// activityToTrade maps a TRADE activity to a domain trade attributed to the
// polled wallet. Activities whose side is not exactly BUY or SELL are rejected.
func activityToTrade(a polymarketapi.Activity, wallet string) (domain.Trade, bool) {
	side, ok := domain.ParseSide(a.Side)
	if !ok {
		return domain.Trade{}, false
	}

	outcome := a.Outcome
	if outcome == "" {
		outcome = "Unknown"
	}
	question := a.Title
	if question == "" {
		question = "Unknown Market"
	}

	return domain.Trade{
		TxHash:        a.TransactionHash,
		Timestamp:     a.Timestamp,
		WalletAddress: wallet,
		Side:          side,
		Outcome:       outcome,
		Question:      question,
		Slug:          a.Slug,
		EventSlug:     a.EventSlug,
		TokenAmount:   a.Size,
		UsdcAmount:    a.UsdcSize,
		Price:         a.Price,
		ConditionID:   a.ConditionID,
		Asset:         a.Asset,
	}, true
}
