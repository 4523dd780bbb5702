package session

import (
	"fmt"
	"net/http"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// HTTPDoer is the transport contract shared by Client and Gateway. Satisfied
// by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds session client options
type Config interface {
	GetBaseURL() string
	GetOrgID() string
	GetAuthScheme() string
	GetLoginPath() string
	GetRefreshPath() string
	GetLogoutPath() string
	GetHTTPTimeout() time.Duration
}

// SimpleConfig is a plain-struct Config implementation with sensible defaults.
type SimpleConfig struct {
	BaseURL     string
	OrgID       string
	AuthScheme  string
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	HTTPTimeout time.Duration
}

func (c SimpleConfig) GetBaseURL() string { return c.BaseURL }

func (c SimpleConfig) GetOrgID() string { return c.OrgID }

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetLoginPath() string {
	if c.LoginPath == "" {
		return "/auth/login"
	}
	return c.LoginPath
}

func (c SimpleConfig) GetRefreshPath() string {
	if c.RefreshPath == "" {
		return "/auth/refresh"
	}
	return c.RefreshPath
}

func (c SimpleConfig) GetLogoutPath() string {
	if c.LogoutPath == "" {
		return "/auth/logout"
	}
	return c.LogoutPath
}

func (c SimpleConfig) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 30 * time.Second
	}
	return c.HTTPTimeout
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
