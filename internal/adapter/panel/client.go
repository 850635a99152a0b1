// Package panel is the client for the hosting panel's application API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shithost/sigma-dash/internal/domain"
	"github.com/shithost/sigma-dash/internal/platform/retry"
	"github.com/sony/gobreaker"
)

const (
	serversPerPage   = 100
	maxResponseBytes = 4 << 20

	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// RequestObserver receives one call per panel API operation.
// outcome is "success", "error" or "rejected" (breaker open).
type RequestObserver interface {
	ObservePanelRequest(operation, outcome string, duration time.Duration)
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retry      retry.Policy
	observer   RequestObserver
}

var _ domain.PanelClient = (*Client)(nil)

type Option func(*Client)

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker(s) }
}

func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		retry: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Panel request failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
		breaker: gobreaker.NewCircuitBreaker(defaultBreakerSettings()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:    "panel",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	}
}

// CheckAvailable is the readiness check for the panel: it fails while the
// breaker is open and never calls the panel itself.
func (c *Client) CheckAvailable(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("panel %w", gobreaker.ErrOpenState)
	}
	return nil
}

// StatusError is a non-2xx answer from the panel.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("panel returned status %d: %s", e.StatusCode, e.Body)
}

// Client errors mean the panel is healthy; only server-side and transport failures trip the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

func classify(err error) retry.Action {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return retry.Stop
		}
	}
	return retry.Retry
}

type userObject struct {
	Attributes domain.PanelUser `json:"attributes"`
}

type serverObject struct {
	Attributes json.RawMessage `json:"attributes"`
}

type pagination struct {
	Total       int `json:"total"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type listMeta struct {
	Pagination pagination `json:"pagination"`
}

func (c *Client) FindUserByEmail(ctx context.Context, email string) (*domain.PanelUser, error) {
	query := url.Values{}
	query.Set("filter[email]", email)

	var list struct {
		Data []userObject `json:"data"`
	}
	err := c.observe("find_user", func() error {
		return c.getWithRetry(ctx, "/api/application/users?"+query.Encode(), &list)
	})
	if err != nil {
		return nil, err
	}

	for _, obj := range list.Data {
		if strings.EqualFold(obj.Attributes.Email, email) {
			user := obj.Attributes
			return &user, nil
		}
	}
	return nil, nil
}

// CreateUser is not retried: a lost response after a successful create would
// otherwise produce a duplicate-email failure on the second attempt.
func (c *Client) CreateUser(ctx context.Context, req domain.CreatePanelUserRequest) (*domain.PanelUser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode create user request: %w", err)
	}

	var created userObject
	err = c.observe("create_user", func() error {
		return c.execute(ctx, http.MethodPost, "/api/application/users", payload, &created)
	})
	if err != nil {
		return nil, err
	}
	if created.Attributes.ID == 0 {
		return nil, errors.New("panel create user response carried no user id")
	}
	return &created.Attributes, nil
}

// ListServers walks every page of the server listing.
func (c *Client) ListServers(ctx context.Context) ([]domain.PanelServer, error) {
	var servers []domain.PanelServer
	err := c.observe("list_servers", func() error {
		for page := 1; ; page++ {
			var resp struct {
				Data []serverObject `json:"data"`
				Meta listMeta       `json:"meta"`
			}
			path := "/api/application/servers?page=" + strconv.Itoa(page) + "&per_page=" + strconv.Itoa(serversPerPage)
			if err := c.getWithRetry(ctx, path, &resp); err != nil {
				return err
			}

			for _, obj := range resp.Data {
				var srv domain.PanelServer
				if err := json.Unmarshal(obj.Attributes, &srv); err != nil {
					return fmt.Errorf("failed to decode server attributes: %w", err)
				}
				servers = append(servers, srv)
			}

			if len(resp.Data) == 0 || page >= resp.Meta.Pagination.TotalPages {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	_, err := retry.Do(ctx, c.retry, classify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.execute(ctx, http.MethodGet, path, nil, out)
	})
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

// execute sends one request through the circuit breaker.
func (c *Client) execute(ctx context.Context, method, path string, body []byte, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build panel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("panel %s %s failed: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read panel response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode panel response: %w", err)
	}
	return nil
}

func (c *Client) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if c.observer != nil {
		outcome := "success"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		c.observer.ObservePanelRequest(operation, outcome, time.Since(start))
	}
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
