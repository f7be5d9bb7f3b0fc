package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// WebSocket upgrader for real-time stats
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statsPushInterval is how often /ws clients receive a stats frame.
const statsPushInterval = time.Second

// healthHandler builds the health, stats and metrics routes.
func (r *Runner) healthHandler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// JSON stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	// WebSocket endpoint for real-time stats
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, req, nil)
		if err != nil {
			r.clients.Logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// Drain client frames so a close is noticed.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(statsPushInterval)
		defer ticker.Stop()

		for {
			if err := conn.WriteJSON(r.GetStats()); err != nil {
				return // Client disconnected
			}
			select {
			case <-req.Context().Done():
				return
			case <-closed:
				return
			case <-ticker.C:
			}
		}
	})

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	// HTML dashboard
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(dashboardHTML))
	})

	return mux
}

// startHealthServer starts an HTTP server for health checks and stats.
func (r *Runner) startHealthServer(port int) {
	r.healthServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r.healthHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.clients.Logger.Error("health server error", zap.Error(err))
		}
	}()
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Polymarket Wallet Tracker</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --border: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --green: #3fb950;
            --red: #f85149;
        }
        body {
            margin: 0;
            padding: 24px;
            background: var(--bg-primary);
            color: var(--text-primary);
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
        }
        h1 { font-size: 20px; margin: 0 0 16px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 12px; }
        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border);
            border-radius: 6px;
            padding: 12px 16px;
        }
        .label { color: var(--text-secondary); font-size: 12px; text-transform: uppercase; }
        .value { font-size: 22px; margin-top: 4px; }
        .ok { color: var(--green); }
        .bad { color: var(--red); }
    </style>
</head>
<body>
    <h1>Polymarket Wallet Tracker <span id="conn" class="bad">●</span></h1>
    <div class="grid">
        <div class="card"><div class="label">Uptime</div><div class="value" id="uptime">-</div></div>
        <div class="card"><div class="label">Watched wallets</div><div class="value" id="wallets">-</div></div>
        <div class="card"><div class="label">Poll cycles</div><div class="value" id="cycles">-</div></div>
        <div class="card"><div class="label">Trades emitted</div><div class="value" id="trades">-</div></div>
        <div class="card"><div class="label">Last poll</div><div class="value" id="last">-</div></div>
        <div class="card"><div class="label">Failures</div><div class="value" id="failures">-</div></div>
        <div class="card"><div class="label">Backoff</div><div class="value" id="backoff">-</div></div>
        <div class="card"><div class="label">Build</div><div class="value" id="build">-</div></div>
    </div>
    <script>
        function render(s) {
            const p = s.poller || {};
            document.getElementById('uptime').textContent = s.uptime;
            document.getElementById('wallets').textContent = s.watched_wallets;
            document.getElementById('cycles').textContent = p.cycles;
            document.getElementById('trades').textContent = p.trades_emitted;
            document.getElementById('last').textContent = p.last_success_ago ? p.last_success_ago + ' ago' : '-';
            const failures = document.getElementById('failures');
            failures.textContent = p.consecutive_failures;
            failures.className = 'value ' + (p.consecutive_failures > 0 ? 'bad' : 'ok');
            document.getElementById('backoff').textContent = (p.backoff / 1e9) + 's';
            document.getElementById('build').textContent = (s.build.commit || '').slice(0, 7);
        }
        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/ws');
            const conn = document.getElementById('conn');
            ws.onopen = () => { conn.className = 'ok'; };
            ws.onmessage = (e) => render(JSON.parse(e.data));
            ws.onclose = () => { conn.className = 'bad'; setTimeout(connect, 2000); };
        }
        connect();
    </script>
</body>
</html>
`
