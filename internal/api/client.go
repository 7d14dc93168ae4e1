package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a typed client for the treasure hunt API, used by command line
// tooling and integration tests. It holds the guest session key issued by the
// server so consecutive calls keep a stable player identity.
type Client struct {
	baseURL    string
	sessionKey string
	adminKey   string
	httpClient *http.Client
}

// NewClient creates an API client against the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAdminKey sets the admin key sent on admin routes.
func (c *Client) WithAdminKey(key string) *Client {
	c.adminKey = key
	return c
}

// SessionKey returns the session key issued by the server, empty until the
// first request completes.
func (c *Client) SessionKey() string {
	return c.sessionKey
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// Nearby fetches treasures within discovery range of the position.
func (c *Client) Nearby(ctx context.Context, lat, lng float64) ([]NearbyTreasure, error) {
	path := fmt.Sprintf("/api/v1/treasures/nearby?lat=%s&lng=%s",
		formatCoord(lat), formatCoord(lng))
	var out []NearbyTreasure
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Discover claims a treasure at the given position.
func (c *Client) Discover(ctx context.Context, treasureID uint, lat, lng float64) (DiscoveryResult, error) {
	path := fmt.Sprintf("/api/v1/treasures/%d/discover", treasureID)
	body := map[string]float64{"latitude": lat, "longitude": lng}
	var out DiscoveryResult
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return DiscoveryResult{}, err
	}
	return out, nil
}

// Leaderboard fetches the top standings. A zero limit uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	path := "/api/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []Standing
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches the admin stats snapshot. Requires an admin key.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionKey != "" {
		req.Header.Set(HeaderSessionKey, c.sessionKey)
	}
	if c.adminKey != "" {
		req.Header.Set(HeaderAdminKey, c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if key := resp.Header.Get(HeaderSessionKey); key != "" {
		c.sessionKey = key
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error.Code != "" {
			return fmt.Errorf("%s: %s", errResp.Error.Code, errResp.Error.Message)
		}
		return fmt.Errorf("request returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
