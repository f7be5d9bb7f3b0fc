package domain

import "time"

// Position is one open position as reported by the feed.
type Position struct {
	Asset        string
	ConditionID  string
	Size         float64
	AvgPrice     float64
	CurrentValue float64
	CashPnl      float64
	PercentPnl   float64
	CurPrice     float64
	Redeemable   bool
	Outcome      string
	Title        string
	EndDate      string
}

// Ended reports whether the market's end date is not after now. A missing end
// date never ends; an unparseable one counts as ended.
func (p Position) Ended(now time.Time) bool {
	if p.EndDate == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, p.EndDate); err == nil {
			return !t.After(now)
		}
	}
	return true
}

// Snapshot converts p to its persisted form.
func (p Position) Snapshot() PositionSnapshot {
	return PositionSnapshot{
		Asset:        p.Asset,
		ConditionID:  p.ConditionID,
		Size:         p.Size,
		AvgPrice:     p.AvgPrice,
		CurrentValue: p.CurrentValue,
		CashPnl:      p.CashPnl,
		PercentPnl:   p.PercentPnl,
		CurPrice:     p.CurPrice,
		Outcome:      p.Outcome,
		Title:        p.Title,
	}
}

// PositionSnapshot is the last seen state of one position for a
// (subscriber, address) pair, keyed by asset.
type PositionSnapshot struct {
	Asset        string
	ConditionID  string
	Size         float64
	AvgPrice     float64
	CurrentValue float64
	CashPnl      float64
	PercentPnl   float64
	CurPrice     float64
	Outcome      string
	Title        string
	FetchedAt    time.Time
}

// PositionDiff is a current position classified against the previous snapshot.
type PositionDiff struct {
	Position
	IsNew     bool
	SizeDiff  float64
	ValueDiff float64
	PnlDiff   float64
}

// PositionReport is the result of diffing one wallet's positions.
type PositionReport struct {
	Address   string
	Positions []PositionDiff
	Closed    []PositionSnapshot
}
