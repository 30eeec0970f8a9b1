// Package apiclient is the REST client for the CATrix platform API. Every
// request carries the bearer credential; a 401 from any endpoint invalidates
// the credential globally through the unauthorized hook. Server-side failures
// (5xx) are retried with exponential backoff, except on auth endpoints.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/catrixlabs/catrix-client/internal/response"
)

const (
	defaultTimeout   = 15 * time.Second
	maxRetries       = 3
	defaultBaseDelay = time.Second
)

// ErrUnauthorized is returned when the server rejects the credential. The
// unauthorized hook has already fired by the time callers see it.
var ErrUnauthorized = errors.New("apiclient: unauthorized")

// APIError is a non-2xx response carrying the server's structured error body.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d code %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the platform API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	baseDelay  time.Duration

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the initial bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "apiclient").Logger() }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUnauthorizedHook registers the callback invoked once per 401 response,
// after the local credential has been cleared.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithRetryBaseDelay overrides the backoff base delay. Tests use this to
// avoid real waits.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// New creates a client against the given base URL (e.g. "http://host/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential (after login).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer credential, empty if invalidated.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope mirrors the server's response wrapper with the data left raw so
// each endpoint can decode its own payload type.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error,omitempty"`
}

// do issues one API call, decoding the enveloped data into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	// Auth endpoints are never retried: a failed login should surface
	// immediately, not after three backoffs.
	retryable := !strings.HasPrefix(path, "/auth/")

	for attempt := 0; ; attempt++ {
		status, raw, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized {
			c.invalidate()
			return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}

		if status >= http.StatusInternalServerError && retryable && attempt < maxRetries {
			delay := c.baseDelay * (1 << uint(attempt+1))
			c.log.Warn().Int("status", status).Str("path", path).
				Dur("backoff", delay).Msg("server error, retrying")
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return c.decodeError(status, raw)
		}

		if out == nil {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(env.Data) == 0 {
			return fmt.Errorf("decode response: empty data")
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// invalidate clears the credential and fires the unauthorized hook.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	hook := c.onUnauthorized
	c.mu.Unlock()

	c.log.Warn().Msg("credential rejected, invalidating")
	if hook != nil {
		hook()
	}
}

func (c *Client) decodeError(status int, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &APIError{Status: status, Code: response.ErrInternal, Message: http.StatusText(status)}
}
