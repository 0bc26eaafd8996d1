package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const smsMessagesPath = "/v1/messages"

// SMSOptions parameterise the SMS push channel.
type SMSOptions struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// SMSDeliverer pushes text messages through the SMS provider's REST API.
type SMSDeliverer struct {
	opts    SMSOptions
	client  *http.Client
	logger  zerolog.Logger
	baseURL string
}

// NewSMSDeliverer constructs the SMS channel.
func NewSMSDeliverer(opts SMSOptions, logger zerolog.Logger) *SMSDeliverer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SMSDeliverer{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "sms_deliverer").Logger(),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Deliver sends one message and returns the provider message id.
func (d *SMSDeliverer) Deliver(ctx context.Context, destination, text string) (Receipt, error) {
	if d.baseURL == "" {
		return Receipt{}, fmt.Errorf("sms base url not configured")
	}
	if destination == "" {
		return Receipt{}, fmt.Errorf("sms destination not configured")
	}

	payload := smsRequest{From: d.opts.From, To: destination, Body: text}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal sms payload: %w", err)
	}

	url := d.baseURL + smsMessagesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.opts.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	var result smsResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Error != "" {
			return Receipt{}, fmt.Errorf("sms provider rejected message: %s", result.Error)
		}
		return Receipt{}, fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		// The provider accepted the message; an empty or unreadable body
		// only costs the receipt id.
		d.logger.Debug().Err(decodeErr).Msg("sms response body unreadable, no provider ref")
		return Receipt{}, nil
	}
	if result.Status == "failed" {
		return Receipt{}, fmt.Errorf("sms provider reported failure: %s", result.Error)
	}

	d.logger.Info().Str("provider_ref", result.ID).Msg("sms dispatched")
	return Receipt{ProviderRef: result.ID}, nil
}

var _ Deliverer = (*SMSDeliverer)(nil)
