// Package probe drives the detection API the way an external caller would
// and checks that repeated queries return identical results.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrJobFailed is returned by Run when the server reports status failed.
	ErrJobFailed = errors.New("detection job failed")
	// ErrTimeout is returned by Run when polling attempts are exhausted.
	ErrTimeout = errors.New("detection job did not complete in time")
)

// StatusError is a non-200 reply from the API.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// JobStatus is a decoded GET /api/v1/status payload.
type JobStatus struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Client talks to a detection service over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	clock        clockwork.Clock
	pollInterval time.Duration
	maxAttempts  int
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithPolling sets the status poll interval and the number of polls Run
// makes before giving up.
func WithPolling(interval time.Duration, maxAttempts int) ClientOption {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxAttempts = maxAttempts
	}
}

// WithClientClock replaces the real clock used between polls.
func WithClientClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a Client for the service at baseURL, e.g.
// "http://127.0.0.1:8000".
func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clock:        clockwork.NewRealClock(),
		pollInterval: time.Second,
		maxAttempts:  30,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts params and returns the request ID.
func (c *Client) Submit(ctx context.Context, params domain.QueryParameters) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/detect", body, "submit")
	if err != nil {
		return "", err
	}

	var reply struct {
		RequestID *string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("decode submit reply: %w", err)
	}
	if reply.RequestID == nil || *reply.RequestID == "" {
		return "", fmt.Errorf("submit reply missing request_id")
	}
	return *reply.RequestID, nil
}

// Status fetches the current status of a request.
func (c *Client) Status(ctx context.Context, id string) (JobStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/status/"+id, nil, "status")
	if err != nil {
		return JobStatus{}, err
	}
	var s JobStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return JobStatus{}, fmt.Errorf("decode status reply: %w", err)
	}
	if s.Status == "" {
		return JobStatus{}, fmt.Errorf("status reply missing status")
	}
	return s, nil
}

// Results fetches the results of a completed request.
func (c *Client) Results(ctx context.Context, id string) (Results, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/results/"+id, nil, "results")
	if err != nil {
		return Results{}, err
	}
	r, err := DecodeResults(data)
	if err != nil {
		return Results{}, err
	}
	if r.RequestID == "" {
		r.RequestID = id
	}
	return r, nil
}

// Run submits params, polls until the job finishes and returns its results.
// Any error ends the attempt; nothing is retried.
func (c *Client) Run(ctx context.Context, params domain.QueryParameters) (Results, error) {
	id, err := c.Submit(ctx, params)
	if err != nil {
		return Results{}, err
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, err := c.Status(ctx, id)
		if err != nil {
			return Results{}, err
		}

		switch status.Status {
		case "completed":
			return c.Results(ctx, id)
		case "failed":
			return Results{}, fmt.Errorf("request %s: %w: %s", id, ErrJobFailed, status.Error)
		}

		c.logger.Debug("waiting for detection", "request_id", id, "status", status.Status, "attempt", attempt)
		select {
		case <-ctx.Done():
			return Results{}, ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
	return Results{}, fmt.Errorf("request %s after %d polls: %w", id, c.maxAttempts, ErrTimeout)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, op string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
