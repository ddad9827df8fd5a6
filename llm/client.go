// Package llm asks a chat-completions model for the next trade setup. The
// model is an opaque collaborator: it may answer with prose, an empty object,
// or garbage, and everything it says is validated downstream by the
// admission gate.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/signal"
)

const (
	defaultBaseURL = "https://api.together.xyz/v1"
	defaultModel   = "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	log         zerolog.Logger
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithBaseURL sets a custom endpoint base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.temperature = temp
	}
}

// WithTimeout sets a custom request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger attaches a logger for response tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a generator client. Defaults target Together AI with the
// free Llama 3.3 70B instruct model.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		temperature: 0.7,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarketContext is everything the prompt gets to see.
type MarketContext struct {
	Symbol  string
	Candles []market.Candle // newest first, as fetched
	Trend   string          // coarse-timeframe summary: Uptrend, Downtrend, Unknown
	History []signal.Signal // recent resolved signals with outcomes
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Propose asks the model for a candidate setup. A nil candidate with a nil
// error means the model declined to signal, which is a normal answer.
func (c *Client) Propose(ctx context.Context, mc MarketContext) (*signal.Candidate, error) {
	prompt, err := buildPrompt(mc)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LLM API error (status %d): %s", resp.StatusCode, string(payload))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("LLM response has no choices")
	}

	content := apiResp.Choices[0].Message.Content
	c.log.Debug().Str("model", c.model).Msg("LLM responded")

	cand, ok := extractCandidate(content)
	if !ok {
		return nil, nil
	}
	return &cand, nil
}
