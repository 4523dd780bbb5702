package session_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/require"
)

// richError unwraps err into its structured form, failing the test otherwise.
func richError(t *testing.T, err error) *goerrors.Error {
	t.Helper()
	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich), "expected a structured error, got %v", err)
	return rich
}

// makeToken builds a three-segment token whose middle segment carries the
// given claims. Header and signature are opaque to the decoder.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func futureToken(t *testing.T) string {
	t.Helper()
	return makeToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
}

func testUser() session.User {
	return session.User{
		ID:               "u1",
		OrgID:            "o1",
		PartyID:          "p1",
		ActiveStatus:     "active",
		PermittedModules: []string{"billing"},
	}
}

// authenticate drives a store through a complete login.
func authenticate(t *testing.T, store *session.Store, accessToken string) {
	t.Helper()
	require.NoError(t, store.BeginLogin())
	require.NoError(t, store.CompleteLogin(accessToken, "refresh-abc", testUser()))
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.warns))
	copy(out, l.warns)
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []session.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.ActivityEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type stubTransport struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (s *stubTransport) Do(req *http.Request) (*http.Response, error) {
	return s.fn(req)
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, refreshToken string) (*session.RefreshResponse, error)
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*session.RefreshResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, refreshToken)
}

func (s *stubRefresher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
