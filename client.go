package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// LoginResponse is the success body of the login endpoint.
type LoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the success body of the refresh endpoint. Only the access
// token rotates; the refresh token stays as issued at login.
type RefreshResponse struct {
	AccessToken      string   `json:"accessToken"`
	PermittedModules []string `json:"permittedModules"`
}

// loginErrorBody is the failure body of the login endpoint. LockoutExpiry is
// milliseconds since epoch and only present when the account is locked.
type loginErrorBody struct {
	Error         string `json:"error"`
	LockoutExpiry *int64 `json:"lockoutExpiry,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithClientHTTP overrides the HTTP transport (useful for tests).
func WithClientHTTP(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the backend's session endpoints: login, refresh, logout.
type Client struct {
	config Config
	http   HTTPDoer
	logger Logger
}

// NewClient returns a backend client for the configured base URL.
func NewClient(config Config, opts ...ClientOption) *Client {
	c := &Client{
		config: config,
		http:   &http.Client{Timeout: config.GetHTTPTimeout()},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Login exchanges a Basic credential plus the configured org identifier for a
// token pair and the authenticated user record. A locked account surfaces as
// ErrAccountLocked carrying the server-asserted lockout expiry; transport
// errors pass through untouched.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.config.GetLoginPath(), nil)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(email, password)
	if org := c.config.GetOrgID(); org != "" {
		req.Header.Set("X-Org-ID", org)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		var out LoginResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			c.logger.Error("login response could not be decoded: %v", err)
			return nil, ErrInvalidLoginResponse.WithMetadata(map[string]any{"cause": err.Error()})
		}
		return &out, nil
	}

	var body loginErrorBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		c.logger.Debug("login failure body could not be decoded: %v", err)
	}

	if body.LockoutExpiry != nil {
		return nil, ErrAccountLocked.WithMetadata(map[string]any{
			"lockout_expiry": time.UnixMilli(*body.LockoutExpiry),
		})
	}

	msg := body.Error
	if msg == "" {
		msg = res.Status
	}
	return nil, goerrors.New(msg, goerrors.CategoryAuth).WithCode(goerrors.CodeUnauthorized)
}

// Refresh exchanges the refresh token for a new access token and the user's
// current module entitlements.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.config.GetRefreshPath(), refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, ErrAuthorizationExpired.WithMetadata(map[string]any{"status": res.StatusCode})
	}

	var out RefreshResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to decode refresh response")
	}

	return &out, nil
}

// Logout revokes the refresh token server-side. Best-effort: local teardown
// never waits on, or is reversed by, this call.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.config.GetLogoutPath(), refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return goerrors.New("server-side logout rejected", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.GetBaseURL()+path, reader)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to build request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req, nil
}
