package polymarketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"polytracker/config"
	"polytracker/internal/domain"

	"go.uber.org/zap"
)

// ActivityTypeTrade is the only activity type the tracker alerts on.
const ActivityTypeTrade = "TRADE"

// MaxPositionsPageSize is the largest page the data API will return for /positions.
const MaxPositionsPageSize = 500

type PolymarketApiClient struct {
	logger      *zap.Logger
	httpClient  *http.Client
	dataBaseURL string
	clobBaseURL string
}

func NewPolymarketApiClient(logger *zap.Logger, cfg *config.Config) *PolymarketApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PolymarketApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dataBaseURL: cfg.Polymarket.DataAPIURL,
		clobBaseURL: cfg.Polymarket.ClobAPIURL,
	}
}

// ---- Data API types ----

// Activity represents user activity from the data API.
type Activity struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Type            string  `json:"type"` // TRADE, SPLIT, MERGE, REDEEM, REWARD, CONVERSION, MAKER_REBATE
	Size            float64 `json:"size"`
	UsdcSize        float64 `json:"usdcSize"`
	TransactionHash string  `json:"transactionHash"`
	Price           float64 `json:"price"`
	Asset           string  `json:"asset"` // CLOB token ID
	Side            string  `json:"side"`  // BUY or SELL
	OutcomeIndex    int     `json:"outcomeIndex"`

	// Market metadata
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Icon      string `json:"icon"`
	EventSlug string `json:"eventSlug"`
	Outcome   string `json:"outcome"`

	// User profile
	Name      string `json:"name"`
	Pseudonym string `json:"pseudonym"`
}

// Position represents an open position from the data API.
type Position struct {
	ProxyWallet        string  `json:"proxyWallet"`
	Asset              string  `json:"asset"`
	ConditionID        string  `json:"conditionId"`
	Size               float64 `json:"size"`
	AvgPrice           float64 `json:"avgPrice"`
	InitialValue       float64 `json:"initialValue"`
	CurrentValue       float64 `json:"currentValue"`
	CashPnl            float64 `json:"cashPnl"`
	PercentPnl         float64 `json:"percentPnl"`
	TotalBought        float64 `json:"totalBought"`
	RealizedPnl        float64 `json:"realizedPnl"`
	PercentRealizedPnl float64 `json:"percentRealizedPnl"`
	CurPrice           float64 `json:"curPrice"`
	Redeemable         bool    `json:"redeemable"`
	Mergeable          bool    `json:"mergeable"`
	Title              string  `json:"title"`
	Slug               string  `json:"slug"`
	Icon               string  `json:"icon"`
	EventSlug          string  `json:"eventSlug"`
	Outcome            string  `json:"outcome"`
	OutcomeIndex       int     `json:"outcomeIndex"`
	OppositeOutcome    string  `json:"oppositeOutcome"`
	OppositeAsset      string  `json:"oppositeAsset"`
	EndDate            string  `json:"endDate"`
	NegativeRisk       bool    `json:"negativeRisk"`
}

// ToDomain keeps the fields the tracker diffs and renders.
func (p Position) ToDomain() domain.Position {
	return domain.Position{
		Asset:        p.Asset,
		ConditionID:  p.ConditionID,
		Size:         p.Size,
		AvgPrice:     p.AvgPrice,
		CurrentValue: p.CurrentValue,
		CashPnl:      p.CashPnl,
		PercentPnl:   p.PercentPnl,
		CurPrice:     p.CurPrice,
		Redeemable:   p.Redeemable,
		Outcome:      p.Outcome,
		Title:        p.Title,
		EndDate:      p.EndDate,
	}
}

// GetActivity fetches TRADE activity for a wallet at or after start (unix
// seconds), oldest first.
func (c *PolymarketApiClient) GetActivity(
	ctx context.Context,
	wallet string,
	start int64,
	limit int,
) ([]Activity, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("wallet is empty")
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/activity"

	q := u.Query()
	q.Set("user", wallet)
	q.Set("type", ActivityTypeTrade)
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "ASC")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	var activity []Activity
	if err := c.doGet(ctx, u.String(), &activity); err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}

	return activity, nil
}

// GetPositions fetches one page of open positions for a wallet, sorted by
// cash P&L descending.
func (c *PolymarketApiClient) GetPositions(
	ctx context.Context,
	wallet string,
	limit int,
	offset int,
) ([]Position, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("wallet is empty")
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/positions"

	q := u.Query()
	q.Set("user", wallet)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sortBy", "CASHPNL")
	q.Set("sortDirection", "DESC")
	u.RawQuery = q.Encode()

	var positions []Position
	if err := c.doGet(ctx, u.String(), &positions); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	return positions, nil
}

// GetAllPositions pages through /positions until a short page is returned.
func (c *PolymarketApiClient) GetAllPositions(
	ctx context.Context,
	wallet string,
	pageSize int,
) ([]Position, error) {
	if pageSize <= 0 || pageSize > MaxPositionsPageSize {
		pageSize = MaxPositionsPageSize
	}

	var all []Position
	for offset := 0; ; offset += pageSize {
		page, err := c.GetPositions(ctx, wallet, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}

	c.logger.Debug("fetched positions",
		zap.String("wallet", wallet),
		zap.Int("count", len(all)),
	)

	return all, nil
}

// ---- CLOB API ----

type priceResponse struct {
	Price string `json:"price"`
}

// GetCurrentPrice returns the current buy-side price of a CLOB token. The
// second return is false when the price is unavailable for any reason.
func (c *PolymarketApiClient) GetCurrentPrice(ctx context.Context, tokenID string) (float64, bool) {
	if tokenID == "" {
		return 0, false
	}

	u, err := url.Parse(c.clobBaseURL)
	if err != nil {
		return 0, false
	}
	u.Path = "/price"

	q := u.Query()
	q.Set("token_id", tokenID)
	q.Set("side", "buy")
	u.RawQuery = q.Encode()

	var resp priceResponse
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		c.logger.Debug("price lookup failed",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
		return 0, false
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, false
	}

	return price, true
}

// doGet is a helper that performs a GET request and decodes JSON response.
func (c *PolymarketApiClient) doGet(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
