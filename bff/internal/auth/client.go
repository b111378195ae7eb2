// Package auth checks browser sessions against the backend. The backend
// owns the session cookie; the gateway only asks who it belongs to.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MePath is the backend endpoint that resolves a session cookie.
const MePath = "/api/auth/me"

// ErrUnauthenticated is returned when the backend rejects the session.
var ErrUnauthenticated = errors.New("session not authenticated")

// User is the identity behind a session.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type meResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// Client calls the backend's session endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Me resolves the session carried by cookieHeader, the raw inbound Cookie header.
func (c *Client) Me(ctx context.Context, cookieHeader string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+MePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthenticated
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("session lookup failed: %d - %s", resp.StatusCode, string(body))
	}

	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !me.Authenticated || me.User == nil {
		return nil, ErrUnauthenticated
	}
	return me.User, nil
}
