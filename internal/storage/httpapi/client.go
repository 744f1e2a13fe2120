// Package httpapi implements the watchlist and user stores against the main
// application's HTTP API, for deployments where the pipeline runs separately
// from the database.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Client fetches watchlists and users from the main application over HTTP.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the main application API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface checks.
var (
	_ storage.WatchlistStore = (*Client)(nil)
	_ storage.UserStore      = (*Client)(nil)
)

// get performs a GET with retries and exponential backoff, decoding the JSON
// body into result. A 404 maps to storage.ErrNotFound and is not retried.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	url := c.baseURL + path

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return storage.ErrNotFound
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal %s response: %w", path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded for %s: %w", path, lastErr)
}

// GetAllWatchlists retrieves every user's watchlist.
func (c *Client) GetAllWatchlists(ctx context.Context) ([]*domain.Watchlist, error) {
	var watchlists []*domain.Watchlist
	if err := c.get(ctx, "/api/watchlists", &watchlists); err != nil {
		return nil, err
	}
	return watchlists, nil
}

// GetWatchlistByUserID retrieves one user's watchlist. The API returns a bare
// items array; an empty array means the user has nothing watched.
func (c *Client) GetWatchlistByUserID(ctx context.Context, userID string) (*domain.Watchlist, error) {
	var items []domain.WatchlistItem
	if err := c.get(ctx, "/api/watchlists/user/"+userID, &items); err != nil {
		return nil, err
	}
	return &domain.Watchlist{UserID: userID, Items: items}, nil
}

// GetWatchedAddressesGlobally retrieves the deduplicated set of addresses
// watched by any user. The API may repeat an address watched by several
// users.
func (c *Client) GetWatchedAddressesGlobally(ctx context.Context) ([]string, error) {
	var raw []string
	if err := c.get(ctx, "/api/watchlists/addresses", &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(raw))
	var addresses []string
	for _, addr := range raw {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses, nil
}

// GetUserByID retrieves a user. The API returns a JSON null for unknown
// users, which maps to storage.ErrNotFound.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User
	if err := c.get(ctx, "/api/user/"+userID, &user); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}
	return user, nil
}
