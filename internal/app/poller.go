package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"polytracker/clients/polymarketapi"
	"polytracker/internal/domain"
	"polytracker/internal/storage"

	"go.uber.org/zap"
)

// ErrPollInFlight is returned by PollCycle when another cycle is still running.
var ErrPollInFlight = errors.New("poll cycle already in flight")

// TradeHandler consumes trades emitted by the poller.
type TradeHandler interface {
	HandleTrade(ctx context.Context, trade domain.Trade) error
}

// TradeHandlerFunc adapts a function to TradeHandler.
type TradeHandlerFunc func(ctx context.Context, trade domain.Trade) error

func (f TradeHandlerFunc) HandleTrade(ctx context.Context, trade domain.Trade) error {
	return f(ctx, trade)
}

// ActivityFeed is the part of the Polymarket client the poller reads from.
type ActivityFeed interface {
	GetActivity(ctx context.Context, wallet string, start int64, limit int) ([]polymarketapi.Activity, error)
}

// PollerConfig holds poller timing and paging.
type PollerConfig struct {
	Interval   time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
	PageLimit  int
}

// DefaultPollerConfig returns the production defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:   15 * time.Second,
		BackoffMin: 2 * time.Second,
		BackoffMax: 60 * time.Second,
		PageLimit:  100,
	}
}

// PollerStats is a point-in-time view of the poller.
type PollerStats struct {
	Running             bool          `json:"running"`
	InFlight            bool          `json:"in_flight"`
	Cycles              uint64        `json:"cycles"`
	SkippedTicks        uint64        `json:"skipped_ticks"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TradesEmitted       uint64        `json:"trades_emitted"`
	WatchedAddresses    int           `json:"watched_addresses"`
	LastSuccessAt       time.Time     `json:"last_success_at,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	Backoff             time.Duration `json:"backoff"`
}

// ActivityPoller polls the activity feed for every watched address, emits
// normalized trades to its handlers and advances a per-address cursor.
type ActivityPoller struct {
	logger  *zap.Logger
	feed    ActivityFeed
	wallets storage.WalletStore
	cursors storage.CursorStore
	metrics *Metrics
	cfg     PollerConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	handlersMu sync.RWMutex
	handlers   []TradeHandler

	running  atomic.Bool
	inFlight atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	cycles   sync.WaitGroup

	// backoff is only touched by the goroutine holding inFlight.
	backoff *Backoff

	statsMu sync.RWMutex
	stats   PollerStats
}

func NewActivityPoller(
	logger *zap.Logger,
	feed ActivityFeed,
	wallets storage.WalletStore,
	cursors storage.CursorStore,
	cfg PollerConfig,
	metrics *Metrics,
) *ActivityPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaults.BackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaults.PageLimit
	}

	p := &ActivityPoller{
		logger:  logger,
		feed:    feed,
		wallets: wallets,
		cursors: cursors,
		metrics: orNewMetrics(metrics),
		cfg:     cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		backoff: NewBackoff(cfg.BackoffMin, cfg.BackoffMax),
	}
	p.sleep = p.waitBackoff
	p.running.Store(true)
	p.stats.Backoff = p.backoff.Current()
	p.metrics.BackoffSeconds.Set(p.backoff.Current().Seconds())
	return p
}

// Handle registers h. Handlers run sequentially in registration order.
func (p *ActivityPoller) Handle(h TradeHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Run polls once immediately, then on every tick until ctx is done or Stop
// is called. A tick that fires while a cycle is in flight is dropped.
func (p *ActivityPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("activity poller started",
		zap.Duration("pollInterval", p.cfg.Interval),
		zap.Int("pageLimit", p.cfg.PageLimit),
	)

	// Initial poll
	p.startCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case <-p.stopCh:
			p.shutdown()
			return
		case <-ticker.C:
			p.startCycle(ctx)
		}
	}
}

func (p *ActivityPoller) startCycle(ctx context.Context) {
	p.cycles.Add(1)
	go func() {
		defer p.cycles.Done()
		_ = p.PollCycle(ctx)
	}()
}

func (p *ActivityPoller) shutdown() {
	p.running.Store(false)
	p.cycles.Wait()
	p.logger.Info("activity poller stopped")
}

// Stop asks Run to return. The in-flight cycle, if any, finishes its current
// address and exits.
func (p *ActivityPoller) Stop() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		close(p.stopCh)
	})
}

// PollCycle polls every watched address once. It returns ErrPollInFlight
// without doing anything if a cycle is already running. On failure it waits
// out the current backoff before returning.
func (p *ActivityPoller) PollCycle(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.PollCycles.WithLabelValues("skipped").Inc()
		p.statsMu.Lock()
		p.stats.SkippedTicks++
		p.statsMu.Unlock()
		return ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	if !p.running.Load() {
		return nil
	}

	start := time.Now()
	err := p.pollAll(ctx)
	p.metrics.PollDuration.Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		delay := p.backoff.Next()
		p.metrics.PollCycles.WithLabelValues("error").Inc()
		p.metrics.BackoffSeconds.Set(p.backoff.Current().Seconds())
		p.statsMu.Lock()
		p.stats.Cycles++
		p.stats.Failures++
		p.stats.ConsecutiveFailures++
		p.stats.LastError = err.Error()
		p.stats.Backoff = p.backoff.Current()
		p.statsMu.Unlock()

		p.logger.Warn("poll cycle failed, backing off",
			zap.Error(err),
			zap.Duration("backoff", delay),
		)
		p.sleep(ctx, delay)
		return err
	}

	p.backoff.Reset()
	p.metrics.PollCycles.WithLabelValues("ok").Inc()
	p.metrics.BackoffSeconds.Set(p.backoff.Current().Seconds())
	p.statsMu.Lock()
	p.stats.Cycles++
	p.stats.ConsecutiveFailures = 0
	p.stats.LastSuccessAt = p.now()
	p.stats.LastError = ""
	p.stats.Backoff = p.backoff.Current()
	p.statsMu.Unlock()
	return nil
}

func (p *ActivityPoller) pollAll(ctx context.Context) error {
	addresses, err := p.wallets.WatchedAddresses(ctx)
	if err != nil {
		return fmt.Errorf("load watched addresses: %w", err)
	}
	p.metrics.WatchedAddresses.Set(float64(len(addresses)))
	p.statsMu.Lock()
	p.stats.WatchedAddresses = len(addresses)
	p.statsMu.Unlock()

	for _, address := range addresses {
		if !p.running.Load() || ctx.Err() != nil {
			p.logger.Debug("poll cycle interrupted by shutdown")
			return nil
		}
		if err := p.pollAddress(ctx, address); err != nil {
			return fmt.Errorf("poll %s: %w", address, err)
		}
	}
	return nil
}

func (p *ActivityPoller) pollAddress(ctx context.Context, address string) error {
	key := domain.CursorKey(address)

	cursor, err := p.cursors.GetCursor(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		// First sighting: start from now and skip history.
		now := p.now().Unix()
		if err := p.cursors.SetCursor(ctx, key, now); err != nil {
			return fmt.Errorf("init cursor: %w", err)
		}
		p.logger.Info("initialized activity cursor",
			zap.String("wallet", address),
			zap.Int64("cursor", now),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	activities, err := p.feed.GetActivity(ctx, address, cursor, p.cfg.PageLimit)
	if err != nil {
		return err
	}
	if len(activities) == 0 {
		return nil
	}
	p.metrics.ActivitiesFetched.Add(float64(len(activities)))

	maxTS := cursor
	for _, a := range activities {
		if a.Timestamp > maxTS {
			maxTS = a.Timestamp
		}
		if a.Type != polymarketapi.ActivityTypeTrade {
			p.metrics.SkippedActivities.WithLabelValues("type").Inc()
			continue
		}
		trade, ok := activityToTrade(a, address)
		if !ok {
			p.metrics.SkippedActivities.WithLabelValues("side").Inc()
			p.logger.Debug("skipping activity with unexpected side",
				zap.String("wallet", address),
				zap.String("tx", a.TransactionHash),
				zap.String("side", a.Side),
			)
			continue
		}
		p.emit(ctx, trade)
	}

	if maxTS > cursor {
		if err := p.cursors.SetCursor(ctx, key, maxTS); err != nil {
			return fmt.Errorf("set cursor: %w", err)
		}
	}
	return nil
}

func (p *ActivityPoller) emit(ctx context.Context, trade domain.Trade) {
	p.handlersMu.RLock()
	handlers := append([]TradeHandler(nil), p.handlers...)
	p.handlersMu.RUnlock()

	p.metrics.TradesEmitted.Inc()
	p.statsMu.Lock()
	p.stats.TradesEmitted++
	p.statsMu.Unlock()

	for i, h := range handlers {
		if err := invokeHandler(ctx, h, trade); err != nil {
			p.metrics.HandlerErrors.Inc()
			p.logger.Error("trade handler failed",
				zap.Int("handler", i),
				zap.String("wallet", trade.WalletAddress),
				zap.String("tx", trade.TxHash),
				zap.Error(err),
			)
		}
	}
}

func invokeHandler(ctx context.Context, h TradeHandler, trade domain.Trade) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleTrade(ctx, trade)
}

// Stats returns a snapshot of poller state.
func (p *ActivityPoller) Stats() PollerStats {
	p.statsMu.RLock()
	stats := p.stats
	p.statsMu.RUnlock()
	stats.Running = p.running.Load()
	stats.InFlight = p.inFlight.Load()
	return stats
}

// waitBackoff sleeps for d, returning early on ctx cancellation or Stop.
func (p *ActivityPoller) waitBackoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-p.stopCh:
	case <-t.C:
	}
}
