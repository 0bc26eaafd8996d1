package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"pulsewire/internal/reading"
)

const composePath = "/v1/compose"

// ClientOptions parameterise the content-service client.
type ClientOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Client calls the hosted content service over HTTP. Calls run through a
// circuit breaker so a flapping content service cannot hold every job run
// open for the full timeout.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	baseURL string
}

// NewClient constructs a content-service client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "content-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "content_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type composeRow struct {
	SeriesKey    string            `json:"series_key"`
	DisplayName  string            `json:"display_name"`
	RawValue     string            `json:"raw_value"`
	NumericValue *string           `json:"numeric_value,omitempty"`
	Status       string            `json:"status"`
	Signal       string            `json:"signal"`
	SignalMarker string            `json:"signal_marker"`
	AsOfDate     string            `json:"as_of_date"`
	History      []decimal.Decimal `json:"history,omitempty"`
	Direction    string            `json:"direction"`
}

type composeRequest struct {
	Variant  string       `json:"variant"`
	Topic    string       `json:"topic,omitempty"`
	Readings []composeRow `json:"readings"`
}

type composeResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// Generate asks the content service for channel text. An empty body is
// passed through untouched so the orchestrator can apply its fallback chain.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("content service base url not configured")
	}

	text, err := c.breaker.Execute(func() (string, error) {
		return c.compose(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) compose(ctx context.Context, req Request) (string, error) {
	payload := composeRequest{
		Variant:  string(req.Variant),
		Topic:    req.Topic,
		Readings: make([]composeRow, 0, len(req.Rows)),
	}
	for _, row := range req.Rows {
		payload.Readings = append(payload.Readings, newComposeRow(row))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal compose payload: %w", err)
	}

	endpoint := c.baseURL + composePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create compose request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send compose request: %w", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseHTTPError(resp.StatusCode, payloadBytes)
	}

	var composed composeResponse
	if err := json.Unmarshal(payloadBytes, &composed); err != nil {
		return "", fmt.Errorf("decode compose response: %w", err)
	}

	return composed.Text, nil
}

func newComposeRow(row reading.TrendReading) composeRow {
	out := composeRow{
		SeriesKey:    row.SeriesKey,
		DisplayName:  row.DisplayName,
		RawValue:     row.RawValue,
		Status:       row.Status,
		Signal:       row.Signal,
		SignalMarker: row.SignalMarker,
		AsOfDate:     row.AsOfDate.UTC().Format("2006-01-02"),
		History:      row.History,
		Direction:    row.Direction(),
	}
	if row.NumericValue.Valid {
		value := row.NumericValue.Decimal.String()
		out.NumericValue = &value
	}
	return out
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("content service error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("content service error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("content service error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("content service error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("content service error (%d)", status)
}

var _ Generator = (*Client)(nil)
