package app

import (
	"context"
	"sync"
	"testing"

	"polytracker/clients/notifier"
	"polytracker/clients/polymarketapi"
	"polytracker/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// MockActivityFeed is a mock implementation of ActivityFeed for testing.
type MockActivityFeed struct {
	mu         sync.Mutex
	activities map[string][]polymarketapi.Activity
	errs       map[string]error
	calls      []ActivityCall

	// started, when set, receives one value per call before it blocks on release.
	started chan string
	release chan struct{}
}

// ActivityCall records one GetActivity invocation.
type ActivityCall struct {
	Wallet string
	Start  int64
	Limit  int
}

func NewMockActivityFeed() *MockActivityFeed {
	return &MockActivityFeed{
		activities: make(map[string][]polymarketapi.Activity),
		errs:       make(map[string]error),
	}
}

// SetActivities sets what the feed returns for wallet, replacing prior data.
func (m *MockActivityFeed) SetActivities(wallet string, activities ...polymarketapi.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[wallet] = activities
}

// SetError makes every fetch for wallet fail with err. nil clears it.
func (m *MockActivityFeed) SetError(wallet string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, wallet)
		return
	}
	m.errs[wallet] = err
}

func (m *MockActivityFeed) GetActivity(ctx context.Context, wallet string, start int64, limit int) ([]polymarketapi.Activity, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ActivityCall{Wallet: wallet, Start: start, Limit: limit})
	activities := m.activities[wallet]
	err := m.errs[wallet]
	started, release := m.started, m.release
	m.mu.Unlock()

	if started != nil {
		started <- wallet
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return activities, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockActivityFeed) Calls() []ActivityCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ActivityCall(nil), m.calls...)
}

// MockPositionFeed is a mock implementation of PositionFeed for testing.
type MockPositionFeed struct {
	mu        sync.Mutex
	positions []polymarketapi.Position
	err       error
	calls     int
	release   chan struct{}
}

func (m *MockPositionFeed) SetPositions(positions ...polymarketapi.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
	m.err = nil
}

func (m *MockPositionFeed) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockPositionFeed) GetAllPositions(ctx context.Context, wallet string, pageSize int) ([]polymarketapi.Position, error) {
	m.mu.Lock()
	m.calls++
	positions, err, release := m.positions, m.err, m.release
	m.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (m *MockPositionFeed) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockPriceSource returns a fixed price per token.
type MockPriceSource struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  int
}

func NewMockPriceSource(prices map[string]float64) *MockPriceSource {
	return &MockPriceSource{prices: prices}
}

func (m *MockPriceSource) GetCurrentPrice(_ context.Context, tokenID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	p, ok := m.prices[tokenID]
	return p, ok
}

func (m *MockPriceSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockAlertSender records trade alerts.
type MockAlertSender struct {
	mu     sync.Mutex
	alerts []notifier.TradeAlert
	err    error
}

func (m *MockAlertSender) SendTradeAlert(_ context.Context, alert notifier.TradeAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MockAlertSender) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockAlertSender) Alerts() []notifier.TradeAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifier.TradeAlert(nil), m.alerts...)
}

// MockMessenger records HTML replies.
type MockMessenger struct {
	mu       sync.Mutex
	messages []SentMessage
	err      error
}

// SentMessage is one recorded reply.
type SentMessage struct {
	ChatID int64
	Text   string
}

func (m *MockMessenger) SendHTML(chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.messages...)
}

// Last returns the most recent reply text, or "" if none.
func (m *MockMessenger) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1].Text
}

// recordingHandler collects the trades it receives.
type recordingHandler struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (h *recordingHandler) HandleTrade(_ context.Context, trade domain.Trade) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append(h.trades, trade)
	return nil
}

func (h *recordingHandler) Trades() []domain.Trade {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Trade(nil), h.trades...)
}

func tradeActivity(tx string, ts int64, side string) polymarketapi.Activity {
	return polymarketapi.Activity{
		Type:            polymarketapi.ActivityTypeTrade,
		TransactionHash: tx,
		Timestamp:       ts,
		Side:            side,
		Size:            100,
		UsdcSize:        50,
		Price:           0.5,
		Asset:           "token-" + tx,
		Title:           "Market " + tx,
		Outcome:         "Yes",
		Slug:            "market-" + tx,
	}
}

// counterValue reads the current value of a counter or gauge.
func counterValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}
