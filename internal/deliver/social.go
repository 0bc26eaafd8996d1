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
	"golang.org/x/time/rate"
)

const socialPostsPath = "/2/posts"

// SocialOptions parameterise the social-post channel.
type SocialOptions struct {
	BaseURL        string
	AccessToken    string
	Timeout        time.Duration
	PostsPerMinute int
}

// SocialDeliverer publishes posts through the social platform API. A local
// limiter keeps the service inside the platform's posting rate limits even
// when several jobs fire close together.
type SocialDeliverer struct {
	opts    SocialOptions
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
	baseURL string
}

// NewSocialDeliverer constructs the social channel.
func NewSocialDeliverer(opts SocialOptions, logger zerolog.Logger) *SocialDeliverer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perMinute := opts.PostsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}

	return &SocialDeliverer{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  logger.With().Str("component", "social_deliverer").Logger(),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type socialRequest struct {
	Text string `json:"text"`
}

type socialResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// Deliver publishes one post on behalf of the configured account. The
// destination is the account handle, used only for logging; the access token
// decides where the post lands.
func (d *SocialDeliverer) Deliver(ctx context.Context, destination, text string) (Receipt, error) {
	if d.baseURL == "" {
		return Receipt{}, fmt.Errorf("social base url not configured")
	}
	if d.opts.AccessToken == "" {
		return Receipt{}, fmt.Errorf("social access token not configured")
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return Receipt{}, fmt.Errorf("wait for post slot: %w", err)
	}

	body, err := json.Marshal(socialRequest{Text: text})
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal post payload: %w", err)
	}

	url := d.baseURL + socialPostsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.opts.AccessToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("send post request: %w", err)
	}
	defer resp.Body.Close()

	var result socialResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Detail != "" {
			return Receipt{}, fmt.Errorf("social platform rejected post: %s", result.Detail)
		}
		return Receipt{}, fmt.Errorf("social platform returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		// The platform accepted the post; an empty or unreadable body only
		// costs the receipt id.
		d.logger.Debug().Err(decodeErr).Msg("post response body unreadable, no provider ref")
		return Receipt{}, nil
	}

	d.logger.Info().Str("handle", destination).Str("provider_ref", result.Data.ID).Msg("post published")
	return Receipt{ProviderRef: result.Data.ID}, nil
}

var _ Deliverer = (*SocialDeliverer)(nil)
