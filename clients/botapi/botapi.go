package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"polydash/config"
	"time"

	"go.uber.org/zap"
)

// BotApiClient talks to the trading bot's HTTP API.
type BotApiClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

func NewBotApiClient(logger *zap.Logger, cfg *config.Config) *BotApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Bot.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BotApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.Bot.BaseURL,
	}
}

// ---- Snapshot types ----
//
// The backend serializes its portfolio state loosely: optional fields are
// simply absent, numbers can be missing on a fresh start. Everything here
// decodes leniently and defaults to the zero value.

// StatusSnapshot is one full state report from the bot.
type StatusSnapshot struct {
	BotStatus string `json:"bot_status"`

	CapitalInicial    float64 `json:"capital_inicial"`
	CapitalTotal      float64 `json:"capital_total"`
	CapitalDisponible float64 `json:"capital_disponible"`
	PnL               float64 `json:"pnl"`
	ROI               float64 `json:"roi"`

	Won     int  `json:"won"`
	Lost    int  `json:"lost"`
	Stopped int  `json:"stopped"`
	Partial *int `json:"partial,omitempty"`

	ScanCount int `json:"scan_count"`

	StopLossRatio *float64 `json:"stop_loss_ratio,omitempty"`

	LastPriceUpdate  string `json:"last_price_update,omitempty"`
	PriceThreadAlive *bool  `json:"price_thread_alive,omitempty"`

	Insights *Insights `json:"insights,omitempty"`

	CapitalHistory    []CapitalPoint `json:"capital_history"`
	OpenPositions     []Position     `json:"open_positions"`
	LastOpportunities []Opportunity  `json:"last_opportunities"`
	ClosedPositions   []Position     `json:"closed_positions"`
}

// CapitalPoint is one sample on the capital-over-time chart.
type CapitalPoint struct {
	Time    string  `json:"time"`
	Capital float64 `json:"capital"`
}

// Position covers both open and closed positions; closed-only fields are
// empty on open ones.
type Position struct {
	Question  string  `json:"question"`
	EntryNo   float64 `json:"entry_no"`
	CurrentNo float64 `json:"current_no,omitempty"`
	Allocated float64 `json:"allocated"`
	PnL       float64 `json:"pnl"`
	Status    string  `json:"status"`

	Resolution string `json:"resolution,omitempty"`
	EntryTime  string `json:"entry_time,omitempty"`
	CloseTime  string `json:"close_time,omitempty"`
}

// Opportunity is one market the scanner surfaced on its last pass.
type Opportunity struct {
	Question    string  `json:"question"`
	NoPrice     float64 `json:"no_price"`
	YesPrice    float64 `json:"yes_price"`
	Volume      float64 `json:"volume"`
	ProfitCents float64 `json:"profit_cents"`
}

// Insights groups historical win-rate buckets.
type Insights struct {
	ByCity []WinRateBucket `json:"by_city"`
	ByHour []WinRateBucket `json:"by_hour"`
}

// WinRateBucket is an aggregated win rate over some slice of closed trades.
type WinRateBucket struct {
	Label   string  `json:"label"`
	WinRate float64 `json:"win_rate"`
	Trades  int     `json:"trades"`
}

// PriceFeedAlive reports whether the bot's price thread is running.
// Backends that predate the field report nothing, which means alive.
func (s *StatusSnapshot) PriceFeedAlive() bool {
	if s.PriceThreadAlive == nil {
		return true
	}
	return *s.PriceThreadAlive
}

// LastPriceUpdateTime parses the last price update timestamp.
// Returns the zero time when the field is absent or unparseable.
func (s *StatusSnapshot) LastPriceUpdateTime() time.Time {
	if s.LastPriceUpdate == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s.LastPriceUpdate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StopLoss returns the configured stop-loss ratio and whether it was reported.
func (s *StatusSnapshot) StopLoss() (float64, bool) {
	if s.StopLossRatio == nil {
		return 0, false
	}
	return *s.StopLossRatio, true
}

// ---- API operations ----

// GetStatus fetches the full bot state.
func (c *BotApiClient) GetStatus(ctx context.Context) (*StatusSnapshot, error) {
	var snap StatusSnapshot
	if err := c.doGet(ctx, c.baseURL+"/api/status", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// StartBot asks the backend to start the trading loop.
func (c *BotApiClient) StartBot(ctx context.Context) error {
	return c.doPost(ctx, c.baseURL+"/api/bot/start", nil)
}

// StopBot asks the backend to stop the trading loop.
func (c *BotApiClient) StopBot(ctx context.Context) error {
	return c.doPost(ctx, c.baseURL+"/api/bot/stop", nil)
}

// SetStopLoss updates the backend's stop-loss ratio.
func (c *BotApiClient) SetStopLoss(ctx context.Context, ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("stop loss ratio out of range: %f", ratio)
	}
	payload := map[string]float64{"stop_loss_ratio": ratio}
	return c.doPost(ctx, c.baseURL+"/api/config", payload)
}

func (c *BotApiClient) doGet(ctx context.Context, url string, dest any) error {
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

func (c *BotApiClient) doPost(ctx context.Context, url string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return nil
}
