package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"aistate/pkg/log"
	"aistate/pkg/models"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// maxResponseBodySize caps how much of a store response is read.
	maxResponseBodySize = 1 << 20
	// maxLogBodySize caps how much of an acknowledgement ends up in logs.
	maxLogBodySize = 200

	DefaultRetryMax       = 3
	DefaultRetryWaitMin   = 500 * time.Millisecond
	DefaultRetryWaitMax   = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Options tune the retry behaviour of the store client.
type Options struct {
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions returns the options used by the gateway binary when nothing is configured.
func DefaultOptions() Options {
	return Options{
		RetryMax:       DefaultRetryMax,
		RetryWaitMin:   DefaultRetryWaitMin,
		RetryWaitMax:   DefaultRetryWaitMax,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Client talks to the upstream state store: GET returns {state}, POST {state} stores it.
type Client struct {
	url            string
	client         *retryablehttp.Client
	requestTimeout time.Duration
}

// NewClient creates a store client for the given state URL.
func NewClient(stateURL string, opts Options) (*Client, error) {
	if stateURL == "" {
		return nil, ErrEmptyURL
	}
	parsed, err := url.Parse(stateURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", stateURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme must be http or https", stateURL)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	return &Client{
		url:            stateURL,
		client:         CreateRetryableClient(opts.RetryMax, opts.RetryWaitMin, opts.RetryWaitMax),
		requestTimeout: opts.RequestTimeout,
	}, nil
}

// URL returns the state endpoint this client targets.
func (c *Client) URL() string {
	return c.url
}

// QueryState reads the current state from the store.
func (c *Client) QueryState(ctx context.Context) (models.AvailabilityState, error) {
	_, state, err := c.QueryStateDocument(ctx)
	return state, err
}

// QueryStateDocument reads the store's state object and returns it untouched, together
// with its validated state field. Fields other than state are kept in the document.
func (c *Client) QueryStateDocument(ctx context.Context) (json.RawMessage, models.AvailabilityState, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUpstreamRead, err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("url", c.url).Msg("Querying upstream state")

	status, body, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUpstreamRead, err)
	}
	if !isSuccessStatus(status) {
		return nil, "", fmt.Errorf("%w: %w", ErrUpstreamRead, &StatusError{StatusCode: status})
	}

	var payload models.StatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("%w: %w: %w", ErrUpstreamRead, ErrMalformedState, err)
	}
	if !payload.State.Valid() {
		return nil, "", fmt.Errorf("%w: %w: %q", ErrUpstreamRead, ErrMalformedState, payload.State)
	}

	return json.RawMessage(body), payload.State, nil
}

// SetState stores state upstream and returns the raw acknowledgement body.
func (c *Client) SetState(ctx context.Context, state models.AvailabilityState) ([]byte, error) {
	body, err := json.Marshal(models.StatePayload{State: state})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %w", ErrUpstreamWrite, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("url", c.url).Str("state", state.String()).Msg("Setting upstream state")

	status, ack, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamWrite, err)
	}
	if !isSuccessStatus(status) {
		log.Warn().
			Str("url", c.url).
			Int("status", status).
			Str("body", truncateBody(ack)).
			Msg("Upstream rejected state write")
		return ack, fmt.Errorf("%w: %w", ErrUpstreamWrite, &StatusError{StatusCode: status})
	}

	log.Debug().Str("state", state.String()).Str("ack", truncateBody(ack)).Msg("Upstream acknowledged state")
	return ack, nil
}

func (c *Client) do(req *retryablehttp.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("url", c.url).Msg("Failed to close upstream response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func truncateBody(body []byte) string {
	if len(body) <= maxLogBodySize {
		return string(body)
	}
	return string(body[:maxLogBodySize]) + "... [truncated]"
}

// CreateRetryableClient creates a retryable HTTP client for store requests.
func CreateRetryableClient(retryMax int, retryWaitMin, retryWaitMax time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = nil
	client.CheckRetry = transportOnlyRetryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// transportOnlyRetryPolicy retries connection failures only. Any HTTP answer, including
// a 5xx, is handed back so the caller sees the store's real status.
func transportOnlyRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // retryablehttp reports the final error itself
	}
	return false, nil
}
