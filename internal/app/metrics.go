package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "polytracker"

// Metrics holds the tracker's Prometheus instruments.
type Metrics struct {
	// Poller
	PollCycles        *prometheus.CounterVec
	PollDuration      prometheus.Histogram
	ActivitiesFetched prometheus.Counter
	TradesEmitted     prometheus.Counter
	SkippedActivities *prometheus.CounterVec
	HandlerErrors     prometheus.Counter
	BackoffSeconds    prometheus.Gauge
	WatchedAddresses  prometheus.Gauge

	// Delivery
	AlertsSent      *prometheus.CounterVec
	AlertFailures   *prometheus.CounterVec
	DuplicateTrades prometheus.Counter

	// Commands
	Commands      *prometheus.CounterVec
	PositionDiffs *prometheus.CounterVec
}

// NewMetrics registers all instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Poll cycles by result (ok, error, skipped)",
		}, []string{"result"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed poll cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		ActivitiesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "activities_fetched_total",
			Help:      "Activity records returned by the feed",
		}),
		TradesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "trades_emitted_total",
			Help:      "Normalized trades handed to handlers",
		}),
		SkippedActivities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "activities_skipped_total",
			Help:      "Activity records not emitted, by reason",
		}, []string{"reason"}),
		HandlerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "handler_errors_total",
			Help:      "Trade handler failures and panics",
		}),
		BackoffSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "backoff_seconds",
			Help:      "Delay the next failed cycle will wait",
		}),
		WatchedAddresses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "poller",
			Name:      "watched_addresses",
			Help:      "Distinct addresses polled in the last cycle",
		}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "alerts_sent_total",
			Help:      "Trade alerts delivered, by channel",
		}, []string{"channel"}),
		AlertFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "alert_failures_total",
			Help:      "Trade alerts that failed to send, by channel",
		}, []string{"channel"}),
		DuplicateTrades: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "duplicate_trades_total",
			Help:      "Trades already present in a subscriber's ledger",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Bot commands handled, by name",
		}, []string{"command"}),
		PositionDiffs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "positions",
			Name:      "diffs_total",
			Help:      "Position diff requests by result",
		}, []string{"result"}),
	}
}

// orNewMetrics lets constructors accept nil by registering on a private registry.
func orNewMetrics(m *Metrics) *Metrics {
	if m != nil {
		return m
	}
	return NewMetrics(prometheus.NewRegistry())
}
