package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/relayproj/relay/internal/logging"
)

// RunIDHeader is the response header carrying the run identifier from a
// successful start request. When absent, the identifier is read from the
// run_id field of the response body instead.
const RunIDHeader = "X-Run-Id"

// defaultAPIPrefix is the path prefix for the remote workflow API.
const defaultAPIPrefix = ""

// Client is the default Adapter implementation. It is safe for concurrent
// use.
type Client struct {
	baseURL    string
	apiPrefix  string
	httpClient *http.Client
	reconnects *rate.Limiter
}

var _ Adapter = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithAPIPrefix sets the API path prefix (e.g., "/api").
func WithAPIPrefix(prefix string) Option {
	return func(client *Client) {
		client.apiPrefix = prefix
	}
}

// WithReconnectRate overrides the pacing of reconnect attempts.
func WithReconnectRate(r rate.Limit, burst int) Option {
	return func(client *Client) {
		client.reconnects = rate.NewLimiter(r, burst)
	}
}

// New creates a client for the remote workflow at baseURL
// (e.g., "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		apiPrefix: defaultAPIPrefix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// One reconnect attempt per second, small burst for the initial
		// resume after a reload.
		reconnects: rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiURL builds a full API URL with the prefix.
func (c *Client) apiURL(path string) string {
	return c.baseURL + c.apiPrefix + path
}

// Start initiates a new run and attaches to its stream.
func (c *Client) Start(ctx context.Context, req StartRequest, h Handlers) (Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("start run: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/runs"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("start run: %w", statusError(resp))
	}

	runID := resp.Header.Get(RunIDHeader)
	if runID == "" {
		var started struct {
			RunID string `json:"run_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
			return nil, fmt.Errorf("start run: decode: %w", err)
		}
		runID = started.RunID
	}
	if runID == "" {
		return nil, fmt.Errorf("start run: response carried no run id")
	}

	logging.Transport().Debug("run started", "run_id", runID)
	return c.dial(ctx, runID, h)
}

// Reconnect attaches to the stream of an existing run. Attempts are paced
// by the client's reconnect limiter.
func (c *Client) Reconnect(ctx context.Context, runID string, h Handlers) (Stream, error) {
	if err := c.reconnects.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	logging.Transport().Debug("reconnecting to run", "run_id", runID)
	return c.dial(ctx, runID, h)
}

// SendFollowUp sends a continuation message to an existing run.
// Non-success responses are returned as a *StatusError carrying the
// server-provided details.
func (c *Client) SendFollowUp(ctx context.Context, runID, text string) error {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return fmt.Errorf("send follow-up: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL("/runs/"+url.PathEscape(runID)), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send follow-up: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send follow-up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	return nil
}

// EndRun notifies the remote run of termination using the reserved
// termination message.
func (c *Client) EndRun(ctx context.Context, runID string) error {
	return c.SendFollowUp(ctx, runID, TerminationMessage)
}

// statusError builds a StatusError from a non-success response, preferring
// the details field of a JSON error body.
func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Details string `json:"details"`
	}
	details := ""
	if err := json.Unmarshal(body, &payload); err == nil && payload.Details != "" {
		details = payload.Details
	} else if len(body) > 0 {
		details = string(body)
	}
	return &StatusError{StatusCode: resp.StatusCode, Details: details}
}
