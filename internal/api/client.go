// Package api is the HTTP client for the task service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/tasktrack/internal/task"
)

// DefaultTimeout bounds a single request when no client is supplied.
const DefaultTimeout = 15 * time.Second

// Request outcomes reported to an Observer.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
)

// Observer receives one call per finished request.
type Observer interface {
	ObserveRequest(op, outcome string, elapsed time.Duration)
}

// Health is the body of GET /health.
type Health struct {
	Status string `json:"status"`
}

// Client talks to the task service over its REST contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	strict     bool
	logger     *log.Logger
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithStrictSchema validates every task payload against the task schema.
func WithStrictSchema(enabled bool) Option {
	return func(c *Client) {
		c.strict = enabled
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports request outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "tasktrack",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTasks fetches every task. Order is whatever the server returns.
func (c *Client) ListTasks(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, "list tasks", http.MethodGet, "/tasks", nil, &tasks, task.ValidateListJSON); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task and returns the server's canonical copy.
func (c *Client) CreateTask(ctx context.Context, title, description string) (task.Task, error) {
	payload := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}{Title: title, Description: description}

	var created task.Task
	err := c.do(ctx, "create task", http.MethodPost, "/tasks", payload, &created, task.ValidateJSON)
	return created, err
}

// SetCompleted sets the completed flag of a task.
func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) (task.Task, error) {
	path := fmt.Sprintf("/tasks/%d?completed=%s", id, strconv.FormatBool(completed))
	var updated task.Task
	err := c.do(ctx, "update task", http.MethodPatch, path, nil, &updated, task.ValidateJSON)
	return updated, err
}

// DeleteTask deletes a task. The server answers 204 No Content.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, "delete task", http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil, nil)
}

// Health reports the service status.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, "health", http.MethodGet, "/health", nil, &h, nil)
	return h, err
}

// do performs one request. A nil out or a 204 response skips decoding.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any, validate func([]byte) error) error {
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRequest(op, outcome, time.Since(start))
		}
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	target, err := c.resolve(path)
	if err != nil {
		outcome = OutcomeTransportError
		return &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		outcome = OutcomeTransportError
		return &TransportError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = OutcomeTransportError
		c.logger.Debug("request failed", "op", op, "method", method, "path", path, "request_id", requestID, "err", err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = OutcomeHTTPError
		// The detail body is best effort; a read failure just drops it.
		data, _ := io.ReadAll(resp.Body)
		return newHTTPError(resp, data)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = OutcomeTransportError
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if c.strict && validate != nil {
		if err := validate(data); err != nil {
			outcome = OutcomeDecodeError
			return &DecodeError{Op: op, Err: err}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		outcome = OutcomeDecodeError
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) resolve(path string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("no API base URL configured")
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return u.String(), nil
}
