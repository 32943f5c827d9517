package torn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://api.torn.com/v2"

// ErrMalformed marks responses that decoded but did not have the expected
// shape. Distinct from APIError, which the remote reported explicitly.
var ErrMalformed = errors.New("malformed torn response")

// APIError is an error reported by the Torn API itself
// (e.g. {"error":{"code":2,"error":"Incorrect key"}}).
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("torn error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("torn error: %s", e.Message)
}

// Client is a Torn API v2 client with rate limiting and retry
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Simple rate limiter
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests)
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithTimeout overrides the HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a new Torn API client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
		// Torn allows 100 requests/minute per key; stay well under it
		minInterval: 700 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiErrorEnvelope struct {
	Error *struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	} `json:"error"`
}

// get performs a GET request with rate limiting, retry on transient failures,
// and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	c.waitRateLimit()

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
		req.Header.Set("User-Agent", "torn-discord-bot")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("torn returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("torn returned status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}

	// Torn reports API errors inside a 200 response
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if envelope.Error != nil {
		return &APIError{Code: envelope.Error.Code, Message: envelope.Error.Error}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) waitRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
}
