package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported session lifecycle events.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "session.login.success"
	ActivityEventLoginFailure    ActivityEventType = "session.login.failure"
	ActivityEventRefreshSuccess  ActivityEventType = "session.refresh.success"
	ActivityEventRefreshFailure  ActivityEventType = "session.refresh.failure"
	ActivityEventLogout          ActivityEventType = "session.logout"
	ActivityEventLockoutRecorded ActivityEventType = "session.lockout.recorded"
	ActivityEventLockoutCleared  ActivityEventType = "session.lockout.cleared"
)

// ActivityEvent captures audit-friendly information about a session transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromState  AuthState
	ToState    AuthState
	Metadata   map[string]any
	OccurredAt time.Time
}

// SessionEnded reports whether the event terminates the session and should
// trigger teardown of dependent state.
func (e ActivityEvent) SessionEnded() bool {
	return e.EventType == ActivityEventLogout || e.EventType == ActivityEventRefreshFailure
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
