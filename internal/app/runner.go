package app

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	clts "polytracker/clients"
	"polytracker/clients/telegram"
	"polytracker/config"
	"polytracker/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// CommandSource yields bot commands until ctx is done.
type CommandSource interface {
	Commands(ctx context.Context) <-chan telegram.Command
}

type Runner struct {
	clients  *clts.Clients
	store    storage.Store
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *Metrics

	poller     *ActivityPoller
	dispatcher *TradeDispatcher
	positions  *PositionDifferencer
	commands   *CommandHandler
	source     CommandSource
	messenger  Messenger

	healthServer *http.Server
	startTime    time.Time
}

// ServiceStats holds comprehensive service statistics.
type ServiceStats struct {
	// Build info
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	// Service info
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	// Poller stats
	Poller struct {
		PollerStats
		PollInterval   string `json:"poll_interval"`
		LastSuccessAgo string `json:"last_success_ago,omitempty"`
	} `json:"poller"`

	WatchedWallets int `json:"watched_wallets"`

	// Notification status
	Notifications struct {
		DiscordEnabled  bool `json:"discord_enabled"`
		TelegramEnabled bool `json:"telegram_enabled"`
	} `json:"notifications"`

	// Runtime stats
	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc"`  // bytes currently allocated on heap
		HeapSys    uint64 `json:"heap_sys"`    // bytes obtained from system for heap
		HeapInuse  uint64 `json:"heap_inuse"`  // bytes in in-use spans
		StackInuse uint64 `json:"stack_inuse"` // bytes in stack spans
		NumGC      uint32 `json:"num_gc"`      // number of completed GC cycles
		LastGC     string `json:"last_gc"`     // time of last GC
		GoVersion  string `json:"go_version"`  // Go version
		NumCPU     int    `json:"num_cpu"`     // number of CPUs
		GOOS       string `json:"goos"`        // operating system
		GOARCH     string `json:"goarch"`      // architecture
	} `json:"runtime"`
}

// NewRunner wires the poller, delivery path, position differencer and command
// handler over the given clients and store.
func NewRunner(clients *clts.Clients, store storage.Store, cfg *config.Config) *Runner {
	logger := clients.Logger
	if logger == nil {
		logger = zap.NewNop()
		clients.Logger = logger
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)

	r := &Runner{
		clients:  clients,
		store:    store,
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
	}

	var chat AlertSender
	if clients.Telegram != nil {
		chat = clients.Telegram
		r.source = clients.Telegram
		r.messenger = clients.Telegram
	}
	var broadcast AlertSender
	if clients.Broadcast != nil {
		broadcast = clients.Broadcast
	}

	r.poller = NewActivityPoller(logger, clients.Polymarket, store, store, PollerConfig{
		Interval:   cfg.Monitor.PollInterval,
		BackoffMin: cfg.Monitor.BackoffMin,
		BackoffMax: cfg.Monitor.BackoffMax,
		PageLimit:  cfg.Monitor.ActivityPageLimit,
	}, metrics)

	r.dispatcher = NewTradeDispatcher(logger, store, store, clients.Polymarket, chat, broadcast, metrics)
	r.poller.Handle(r.dispatcher)

	r.positions = NewPositionDifferencer(logger, clients.Polymarket, store, cfg.Monitor.PositionsPageLimit, metrics)
	r.commands = NewCommandHandler(logger, r.messenger, store, store, r.positions, r.poller, metrics)

	return r
}

// Run starts the poller, the command loop and the health server, and blocks
// until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil || r.messenger == nil {
		return fmt.Errorf("telegram client is required")
	}

	r.startTime = time.Now()
	logger := r.clients.Logger

	logger.Info("starting wallet tracker",
		zap.Duration("pollInterval", r.cfg.Monitor.PollInterval),
		zap.Int("activityPageLimit", r.cfg.Monitor.ActivityPageLimit),
		zap.Bool("discordEnabled", r.clients.Discord != nil && r.clients.Discord.Enabled()),
	)

	// Start health check server if enabled
	if r.cfg.HealthServer.Enabled {
		r.startHealthServer(r.cfg.HealthServer.Port)
		logger.Info("health server started", zap.Int("port", r.cfg.HealthServer.Port))
	}

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		r.poller.Run(ctx)
	}()

	r.notifyAdmin()

	var handlers sync.WaitGroup
	for cmd := range r.source.Commands(ctx) {
		handlers.Add(1)
		go func(cmd telegram.Command) {
			defer handlers.Done()
			r.commands.Handle(ctx, cmd)
		}(cmd)
	}

	if ctx.Err() == nil {
		logger.Warn("telegram update stream closed, commands disabled until restart")
		<-ctx.Done()
	}
	logger.Info("runner shutting down")

	r.poller.Stop()
	<-pollerDone
	handlers.Wait()

	// Shutdown health server
	if r.healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.healthServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	return nil
}

func (r *Runner) notifyAdmin() {
	chatID := r.cfg.Telegram.AdminChatID
	if chatID == 0 {
		return
	}
	msg := fmt.Sprintf("🤖 <b>Wallet tracker started</b>\n\nBuild: <code>%s</code>", shortID(BuildCommit))
	if err := r.messenger.SendHTML(chatID, msg); err != nil {
		r.clients.Logger.Warn("failed to send startup notice", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	// Build info
	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	// Service info
	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	uptime := time.Since(r.startTime)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	// Poller stats
	pollerStats := r.poller.Stats()
	stats.Poller.PollerStats = pollerStats
	stats.Poller.PollInterval = r.poller.cfg.Interval.String()
	if !pollerStats.LastSuccessAt.IsZero() {
		stats.Poller.LastSuccessAgo = time.Since(pollerStats.LastSuccessAt).Round(time.Second).String()
	}
	stats.WatchedWallets = pollerStats.WatchedAddresses

	// Notification status
	stats.Notifications.DiscordEnabled = r.clients.Discord != nil && r.clients.Discord.Enabled()
	stats.Notifications.TelegramEnabled = r.clients.Telegram != nil

	// Runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = memStats.HeapAlloc
	stats.Runtime.HeapSys = memStats.HeapSys
	stats.Runtime.HeapInuse = memStats.HeapInuse
	stats.Runtime.StackInuse = memStats.StackInuse
	stats.Runtime.NumGC = memStats.NumGC
	if memStats.LastGC > 0 {
		stats.Runtime.LastGC = time.Unix(0, int64(memStats.LastGC)).UTC().Format(time.RFC3339)
	}
	stats.Runtime.GoVersion = runtime.Version()
	stats.Runtime.NumCPU = runtime.NumCPU()
	stats.Runtime.GOOS = runtime.GOOS
	stats.Runtime.GOARCH = runtime.GOARCH

	return stats
}
