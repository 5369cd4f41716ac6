// Package client is the Go client library for the HashVest auth API. It owns
// the client-resident session: token storage, proactive refresh and route
// guarding for the user and admin applications.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCredentials is the uniform login failure. The server never
// distinguishes unknown account from wrong password, and neither do we.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrSessionExpired signals that the stored session can no longer be
// refreshed and the user must authenticate again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsAuthError reports whether err is a 401 from the API.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// User is the principal projection the API returns.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
	Verified bool   `json:"verified"`
}

// TokenPair mirrors the server's token payload.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Credentials is the payload of a successful login or refresh.
type Credentials struct {
	Tokens TokenPair `json:"tokens"`
	User   User      `json:"user"`
}

// Client talks to the auth API over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "INTERNAL", Message: "request failed"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("api: decode payload: %w", err)
		}
	}
	return nil
}

// Login authenticates on the user surface. All credential failures return
// ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	return c.login(ctx, "/v1/auth/login", email, password)
}

// AdminLogin authenticates on the admin surface.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (Credentials, error) {
	return c.login(ctx, "/v1/admin/login", email, password)
}

func (c *Client) login(ctx context.Context, path, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, path, "", map[string]string{
		"email":    email,
		"password": password,
	}, &creds)
	if err != nil {
		if IsAuthError(err) {
			return Credentials{}, ErrInvalidCredentials
		}
		return Credentials{}, err
	}
	return creds, nil
}

// Refresh exchanges the refresh token for a fresh pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refreshToken": refreshToken,
	}, &creds)
	if err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", accessToken, nil, nil)
}

// Profile fetches the current principal; it is the bootstrap re-validation
// round trip.
func (c *Client) Profile(ctx context.Context, accessToken string) (User, error) {
	var payload struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", accessToken, nil, &payload); err != nil {
		return User{}, err
	}
	return payload.User, nil
}
