// Package api implements the REST client for the audiencedeck backend.
// Every request carries "Authorization: Bearer <token>" when a token is
// present; any 401 response wipes the stored credentials and fires the
// injected unauthorized handler before the error is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"audiencedeck/internal/logging"
)

// Credentials is the credential source read on every outgoing request and
// cleared on any unauthorized response.
type Credentials interface {
	Token() string
	Clear() error
}

// Client talks to the audiencedeck backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	creds          Credentials
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithUnauthorizedHandler sets the capability invoked after a 401 has wiped
// the stored credentials (the "redirect to login" hook).
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("%s %s transport error (req %s): %v", method, path, reqID, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logging.API("%s %s returned 401, clearing credentials", method, path)
		if c.creds != nil {
			if clearErr := c.creds.Clear(); clearErr != nil {
				logging.APIError("credential wipe failed: %v", clearErr)
			}
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.APIDebug("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	logging.APIDebug("%s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new user and returns the issued session.
func (c *Client) Signup(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", authRequest{Email: email, Password: password}, &s)
	return s, err
}

// Login authenticates an existing user.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", authRequest{Email: email, Password: password}, &s)
	return s, err
}

// Me returns the profile for the current bearer token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u)
	return u, err
}

// EnsurePhylloUser makes sure a remote counterpart user exists for the
// Connect flow and returns its identifier. Idempotent on the backend.
func (c *Client) EnsurePhylloUser(ctx context.Context, name string) (PhylloUser, error) {
	var u PhylloUser
	err := c.do(ctx, http.MethodPost, "/api/phyllo/user", map[string]string{"name": name}, &u)
	return u, err
}

// SDKToken requests a short-lived token for the Connect widget.
func (c *Client) SDKToken(ctx context.Context) (SDKToken, error) {
	var t SDKToken
	err := c.do(ctx, http.MethodPost, "/api/phyllo/sdk-token", nil, &t)
	return t, err
}

// Accounts fetches the current connected-account snapshot.
func (c *Client) Accounts(ctx context.Context) ([]ConnectedAccount, error) {
	var accounts []ConnectedAccount
	err := c.do(ctx, http.MethodGet, "/api/phyllo/accounts", nil, &accounts)
	return accounts, err
}

// Audience fetches the demographic splits for one account. The payload is
// validated before it is returned; an invalid payload is an error like any
// other fetch failure.
func (c *Client) Audience(ctx context.Context, accountID string) (AudienceRecord, error) {
	var demo AudienceDemographics
	if err := c.do(ctx, http.MethodGet, "/api/insights/"+accountID+"/audience", nil, &demo); err != nil {
		return AudienceRecord{}, err
	}
	if err := demo.Validate(); err != nil {
		return AudienceRecord{}, fmt.Errorf("invalid audience payload for %s: %w", accountID, err)
	}
	return AudienceRecord{
		AccountID:    accountID,
		Demographics: demo,
		FetchedAt:    time.Now(),
	}, nil
}
