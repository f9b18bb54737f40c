// Package kinderpedia implements the Kinderpedia web API client.
// This package handles all communication with the Kinderpedia platform:
// login/session management, account discovery, weekly timeline fetches
// and the newsfeed.
//
// The API is unofficial, so the client is deliberately gentle: a shared
// minimum interval between requests, bounded retries, and a circuit
// breaker that fails fast while the remote is down.
package kinderpedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/newsfeed"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/retry"
)

// API paths relative to the base URL.
const (
	loginPath    = "/api/v1/auth/login"
	corePath     = "/api/v1/core"
	timelinePath = "/api/v1/dailytimeline?week=%d"
	newsfeedPath = "/api/v1/newsfeed"
)

// tokenSafetyMargin is subtracted from the reported token expiry so a
// token is never used right at its deadline.
const tokenSafetyMargin = 2 * time.Minute

// Config contains configuration for the Kinderpedia API client.
type Config struct {
	// BaseURL is the Kinderpedia API base URL.
	BaseURL string

	// APIKey is the static application key sent with every request.
	APIKey string

	// Email and Password are the parent-account credentials.
	Email    string
	Password string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// MinRequestInterval is the minimum spacing between any two outbound
	// requests, shared across all children.
	MinRequestInterval time.Duration

	// CircuitBreaker configures fail-fast behavior while the API is down.
	CircuitBreaker CircuitBreakerConfig

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL, email, password string) Config {
	return Config{
		BaseURL:            baseURL,
		Email:              email,
		Password:           password,
		Timeout:            30 * time.Second,
		MinRequestInterval: 500 * time.Millisecond,
		CircuitBreaker:     DefaultCircuitBreakerConfig(),
	}
}

// Client is the Kinderpedia API client. It implements the WeekFetcher
// contract used by the backfill walker and the poll coordinator.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	breaker    *circuitBreaker
	retrier    *retry.Retrier
	mapper     *Mapper

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new Kinderpedia API client.
func NewClient(config Config) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MinRequestInterval <= 0 {
		config.MinRequestInterval = 500 * time.Millisecond
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
		limiter:    rate.NewLimiter(rate.Every(config.MinRequestInterval), 1),
		breaker:    newCircuitBreaker(config.CircuitBreaker),
		retrier:    retry.KinderpediaRetrier(),
		mapper:     NewMapper(),
	}
}

// FetchChildren returns all children on active accounts.
func (c *Client) FetchChildren(ctx context.Context) ([]*child.Child, error) {
	var resp coreResponse
	if err := c.get(ctx, corePath, 0, 0, &resp); err != nil {
		return nil, fmt.Errorf("fetch children: %w", err)
	}
	return c.mapper.MapChildren(&resp)
}

// FetchWeek fetches the timeline for one child at the given signed week
// offset (0 = current week, -1 = previous week). An empty payload is the
// enrollment-boundary signal, not an error.
func (c *Client) FetchWeek(ctx context.Context, ch *child.Child, weekOffset int) (*timeline.WeekPayload, error) {
	var resp timelineResponse
	path := fmt.Sprintf(timelinePath, weekOffset)
	if err := c.get(ctx, path, ch.ChildID, ch.KindergartenID, &resp); err != nil {
		return nil, fmt.Errorf("fetch week %d for %s: %w", weekOffset, ch.Key(), err)
	}
	return c.mapper.MapTimeline(&resp), nil
}

// FetchNewsfeed returns the parsed newsfeed for one child.
func (c *Client) FetchNewsfeed(ctx context.Context, ch *child.Child) ([]newsfeed.Item, error) {
	var resp newsfeedResponse
	if err := c.get(ctx, newsfeedPath, ch.ChildID, ch.KindergartenID, &resp); err != nil {
		return nil, fmt.Errorf("fetch newsfeed for %s: %w", ch.Key(), err)
	}
	return c.mapper.MapNewsfeed(&resp), nil
}

// login obtains a session token, reusing a cached one while valid.
func (c *Client) login(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.config.Email,
		"password": c.config.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", shared.WrapError("kinderpedia", "Login", shared.ErrServiceUnavailable, "login request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("Login", resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", shared.WrapError("kinderpedia", "Login", shared.ErrInvalidFormat, "decode login response", err)
	}
	if login.Token == "" {
		return "", shared.ErrAPIAuthFailed
	}

	c.token = login.Token
	c.tokenExpiry = time.Unix(login.ExpireAt, 0).Add(-tokenSafetyMargin)
	c.logger.Debug("kinderpedia login ok", "token_expiry", c.tokenExpiry)
	return c.token, nil
}

// invalidateToken drops the cached token so the next request re-logins.
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

// get performs an authenticated GET with rate limiting, circuit breaking
// and bounded retries, decoding the JSON body into out.
func (c *Client) get(ctx context.Context, path string, childID, kindergartenID int, out any) error {
	if err := c.breaker.allow(); err != nil {
		return shared.WrapError("kinderpedia", "Request", shared.ErrServiceUnavailable, "circuit open", err)
	}

	operation := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		token, err := c.login(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-requested-with", "XMLHttpRequest")
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("Cookie", "JWToken="+token)
		if childID > 0 {
			req.Header.Set("x-child-id", fmt.Sprintf("%d", childID))
			req.Header.Set("x-kindergarten-id", fmt.Sprintf("%d", kindergartenID))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Retryable(shared.WrapError("kinderpedia", "Request", shared.ErrServiceUnavailable, "request failed", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to decode
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// Session expired mid-flight: drop the token and retry once
			// with a fresh login.
			c.invalidateToken()
			return retry.Retryable(statusError("Request", resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests:
			return statusError("Request", resp.StatusCode)
		case resp.StatusCode >= 500:
			return retry.Retryable(statusError("Request", resp.StatusCode))
		default:
			return statusError("Request", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Retryable(shared.WrapError("kinderpedia", "Request", shared.ErrServiceUnavailable, "read response", err))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return shared.WrapError("kinderpedia", "Parse", shared.ErrInvalidFormat, "decode response", err)
		}
		return nil
	}

	err := c.retrier.Do(ctx, operation)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.breaker.recordFailure()
		}
		return err
	}
	c.breaker.recordSuccess()
	return nil
}

// statusError maps an HTTP status to the domain error taxonomy.
func statusError(op string, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return shared.NewDomainError("kinderpedia", op, shared.ErrUnauthorized,
			fmt.Sprintf("HTTP %d", status))
	case status == http.StatusTooManyRequests:
		return shared.NewDomainError("kinderpedia", op, shared.ErrRateLimited,
			fmt.Sprintf("HTTP %d", status))
	case status >= 500:
		return shared.NewDomainError("kinderpedia", op, shared.ErrServiceUnavailable,
			fmt.Sprintf("HTTP %d", status))
	default:
		return shared.NewDomainError("kinderpedia", op, shared.ErrExternalService,
			fmt.Sprintf("HTTP %d", status))
	}
}
