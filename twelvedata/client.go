package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/signalbot/market"
)

// BaseURL is the production TwelveData endpoint.
const BaseURL = "https://api.twelvedata.com"

// Interval represents the candle time frame.
type Interval string

const (
	Min1  Interval = "1min"
	Min5  Interval = "5min"
	Min15 Interval = "15min"
	Min30 Interval = "30min"
	Min45 Interval = "45min"
	H1    Interval = "1h"
	H2    Interval = "2h"
	H4    Interval = "4h"
	Day   Interval = "1day"
	Week  Interval = "1week"
)

var (
	// ErrUnavailable is returned once the bounded retries are exhausted.
	ErrUnavailable = errors.New("twelvedata: series unavailable")

	// ErrRateLimited reports the per-minute API credit limit. Callers must
	// not retry it locally; the replay batch aborts on it.
	ErrRateLimited = errors.New("twelvedata: rate limited")
)

// APIError is a structured error payload from the provider.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twelvedata: API error (code %d): %s", e.Code, e.Message)
}

// Client is a TwelveData time-series API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a custom endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets a custom request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a TwelveData client with a bounded request timeout.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeriesRequest represents parameters for fetching a candle series. Count and
// the Start/End window are mutually exclusive; Count wins when both are set.
type SeriesRequest struct {
	Symbol     string   // required, e.g. "BTC/USD:Binance"
	Interval   Interval // candle granularity (default Min15)
	OutputSize int      // number of candles (provider max 5000)
	Start      *time.Time
	End        *time.Time
}

type seriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
}

type seriesResponse struct {
	Values  []seriesValue `json:"values"`
	Status  string        `json:"status"`
	Code    int           `json:"code"`
	Message string        `json:"message"`
}

// GetSeries fetches one candle series. Candles come back the way the
// provider orders them: newest first. Any malformed row fails the whole
// fetch, so a bad candle can never reach the evaluator.
func (c *Client) GetSeries(ctx context.Context, req SeriesRequest) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Interval == "" {
		req.Interval = Min15
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("interval", string(req.Interval))
	params.Set("apikey", c.apiKey)
	if req.OutputSize > 0 {
		params.Set("outputsize", strconv.Itoa(req.OutputSize))
	}
	if req.Start != nil {
		params.Set("start_date", req.Start.UTC().Format(queryLayout))
	}
	if req.End != nil {
		params.Set("end_date", req.End.UTC().Format(queryLayout))
	}

	apiURL := fmt.Sprintf("%s/time_series?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The provider reports errors inside a 200 body: status "error" plus a
	// message, or simply no values array.
	if apiResp.Status == "error" || apiResp.Values == nil {
		if isRateLimited(apiResp.Message) {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, apiResp.Message)
		}
		return nil, &APIError{Code: apiResp.Code, Message: apiResp.Message}
	}

	candles := make([]market.Candle, 0, len(apiResp.Values))
	for _, v := range apiResp.Values {
		candle, err := parseCandle(v)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetSeriesWithRetry retries transient failures up to attempts with a fixed
// delay. A rate-limit error aborts immediately so the caller can stop the
// whole batch; exhausted retries surface as ErrUnavailable.
func (c *Client) GetSeriesWithRetry(ctx context.Context, req SeriesRequest, attempts int, delay time.Duration) ([]market.Candle, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		candles, err := c.GetSeries(ctx, req)
		if err == nil {
			return candles, nil
		}
		if errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempts, lastErr)
}

const queryLayout = "2006-01-02 15:04:05"

func isRateLimited(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "credits for the current minute")
}

func parseCandle(v seriesValue) (market.Candle, error) {
	t, err := parseTime(v.Datetime)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse datetime %q: %w", v.Datetime, err)
	}
	open, err := strconv.ParseFloat(v.Open, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse open price: %w", err)
	}
	high, err := strconv.ParseFloat(v.High, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse high price: %w", err)
	}
	low, err := strconv.ParseFloat(v.Low, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse low price: %w", err)
	}
	closePrice, err := strconv.ParseFloat(v.Close, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse close price: %w", err)
	}

	return market.Candle{
		Time:  t,
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePrice,
	}, nil
}

// parseTime accepts the provider's naive "2006-01-02 15:04:05" stamps (UTC)
// and falls back to RFC3339, which some plan tiers return.
func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(queryLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
