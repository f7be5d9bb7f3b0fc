package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"polytracker/clients/polymarketapi"
	"polytracker/internal/domain"
	"polytracker/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PositionFeed is the part of the Polymarket client the differencer reads from.
type PositionFeed interface {
	GetAllPositions(ctx context.Context, wallet string, pageSize int) ([]polymarketapi.Position, error)
}

// PositionDifferencer compares a wallet's live positions with the snapshot
// last shown to a subscriber, then saves the live set as the new snapshot.
type PositionDifferencer struct {
	logger    *zap.Logger
	feed      PositionFeed
	snapshots storage.SnapshotStore
	pageSize  int
	metrics   *Metrics
	now       func() time.Time

	// group serializes diffs per (subscriber, address).
	group singleflight.Group
}

func NewPositionDifferencer(
	logger *zap.Logger,
	feed PositionFeed,
	snapshots storage.SnapshotStore,
	pageSize int,
	metrics *Metrics,
) *PositionDifferencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 || pageSize > polymarketapi.MaxPositionsPageSize {
		pageSize = polymarketapi.MaxPositionsPageSize
	}
	return &PositionDifferencer{
		logger:    logger,
		feed:      feed,
		snapshots: snapshots,
		pageSize:  pageSize,
		metrics:   orNewMetrics(metrics),
		now:       time.Now,
	}
}

// Diff returns the position report for address as seen by chatID. Concurrent
// calls for the same pair share one fetch and one snapshot write. A failed
// fetch leaves the stored snapshot untouched.
func (d *PositionDifferencer) Diff(ctx context.Context, chatID int64, address string) (domain.PositionReport, error) {
	key := strconv.FormatInt(chatID, 10) + "|" + address

	v, err, shared := d.group.Do(key, func() (any, error) {
		return d.diff(ctx, chatID, address)
	})
	if err != nil {
		d.metrics.PositionDiffs.WithLabelValues("error").Inc()
		return domain.PositionReport{}, err
	}
	if shared {
		d.logger.Debug("position diff shared with concurrent caller",
			zap.Int64("chatID", chatID),
			zap.String("wallet", address),
		)
	}
	d.metrics.PositionDiffs.WithLabelValues("ok").Inc()
	return v.(domain.PositionReport), nil
}

func (d *PositionDifferencer) diff(ctx context.Context, chatID int64, address string) (domain.PositionReport, error) {
	raw, err := d.feed.GetAllPositions(ctx, address, d.pageSize)
	if err != nil {
		return domain.PositionReport{}, fmt.Errorf("fetch positions: %w", err)
	}

	now := d.now()
	current := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		pos := p.ToDomain()
		if pos.Ended(now) {
			continue
		}
		current = append(current, pos)
	}

	prev, err := d.snapshots.Snapshots(ctx, chatID, address)
	if err != nil {
		return domain.PositionReport{}, fmt.Errorf("load snapshots: %w", err)
	}

	diffs, closed := DiffPositions(prev, current)

	if err := d.snapshots.ReplaceSnapshots(ctx, chatID, address, current); err != nil {
		return domain.PositionReport{}, fmt.Errorf("replace snapshots: %w", err)
	}

	d.logger.Debug("positions diffed",
		zap.Int64("chatID", chatID),
		zap.String("wallet", address),
		zap.Int("current", len(diffs)),
		zap.Int("closed", len(closed)),
	)

	return domain.PositionReport{
		Address:   address,
		Positions: diffs,
		Closed:    closed,
	}, nil
}

// DiffPositions classifies current against prev by asset. Positions absent
// from prev are new; the rest carry size, value and P&L deltas. Snapshots with
// no current counterpart are returned as closed, ordered by title then asset.
// prev is not modified.
func DiffPositions(prev map[string]domain.PositionSnapshot, current []domain.Position) ([]domain.PositionDiff, []domain.PositionSnapshot) {
	remaining := make(map[string]domain.PositionSnapshot, len(prev))
	for k, v := range prev {
		remaining[k] = v
	}

	diffs := make([]domain.PositionDiff, 0, len(current))
	for _, pos := range current {
		old, ok := remaining[pos.Asset]
		if !ok {
			diffs = append(diffs, domain.PositionDiff{Position: pos, IsNew: true})
			continue
		}
		delete(remaining, pos.Asset)
		diffs = append(diffs, domain.PositionDiff{
			Position:  pos,
			SizeDiff:  pos.Size - old.Size,
			ValueDiff: pos.CurrentValue - old.CurrentValue,
			PnlDiff:   pos.CashPnl - old.CashPnl,
		})
	}

	closed := make([]domain.PositionSnapshot, 0, len(remaining))
	for _, snap := range remaining {
		closed = append(closed, snap)
	}
	sort.Slice(closed, func(i, j int) bool {
		if closed[i].Title != closed[j].Title {
			return closed[i].Title < closed[j].Title
		}
		return closed[i].Asset < closed[j].Asset
	})

	return diffs, closed
}
