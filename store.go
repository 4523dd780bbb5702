package session

import (
	"context"
	"sync"
	"time"
)

// AuthState is the session's position in the authentication lifecycle.
type AuthState string

const (
	StateAnonymous      AuthState = "anonymous"
	StateAuthenticating AuthState = "authenticating"
	StateAuthenticated  AuthState = "authenticated"
	StateRefreshing     AuthState = "refreshing"
	StateLoggedOut      AuthState = "logged_out"
)

// Session is a point-in-time read view of the store. The access token and its
// decoded expiry always come from the same issuance.
type Session struct {
	State         AuthState
	AccessToken   string
	RefreshToken  string
	TokenExpiry   time.Time
	User          *User
	Locked        bool
	LockoutExpiry time.Time
	LastError     string
}

// Authenticated reports whether the session currently holds an access token.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated || s.State == StateRefreshing
}

// Subscriber receives lifecycle events synchronously, in transition order.
type Subscriber func(event ActivityEvent)

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreLogger overrides the logger used for sink failures.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.sink = normalizeActivitySink(sink)
	}
}

// Store is the authoritative holder of the session. All writes go through the
// named transition operations; each is atomic from the caller's perspective.
type Store struct {
	mu            sync.Mutex
	state         AuthState
	accessToken   string
	refreshToken  string
	tokenExpiry   time.Time
	user          *User
	locked        bool
	lockoutExpiry time.Time
	lastError     string
	generation    uint64
	subscribers   []Subscriber

	transitions map[AuthState]map[AuthState]struct{}
	now         func() time.Time
	logger      Logger
	sink        ActivitySink
}

// NewStore returns an empty, anonymous session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state: StateAnonymous,
		transitions: map[AuthState]map[AuthState]struct{}{
			StateAnonymous: {
				StateAuthenticating: {},
				StateAuthenticated:  {},
			},
			StateAuthenticating: {
				StateAuthenticated: {},
				StateAnonymous:     {},
			},
			StateAuthenticated: {
				StateRefreshing: {},
				StateLoggedOut:  {},
			},
			StateRefreshing: {
				StateAuthenticated: {},
				StateLoggedOut:     {},
			},
			StateLoggedOut: {
				StateAuthenticating: {},
				StateAuthenticated:  {},
			},
		},
		now:    time.Now,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Subscribe registers a synchronous lifecycle event listener.
func (s *Store) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// BeginLogin moves the session into the authenticating state and clears any
// previous error.
func (s *Store) BeginLogin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransitionLocked(StateAuthenticating); err != nil {
		return err
	}

	s.state = StateAuthenticating
	s.lastError = ""
	return nil
}

// CompleteLogin validates the login response and, on success, populates the
// whole session in one transition. The token and its decoded expiry are set
// together; a validation failure leaves the state untouched.
func (s *Store) CompleteLogin(accessToken, refreshToken string, user User) error {
	decoded, err := DecodeToken(accessToken)
	if err != nil {
		s.logger.Error("login response carried an undecodable access token: %v", err)
		return ErrInvalidLoginResponse.WithMetadata(map[string]any{"cause": "malformed access token"})
	}

	if err := user.Validate(); err != nil {
		s.logger.Error("login response user record invalid: %v", err)
		return ErrInvalidLoginResponse.WithMetadata(map[string]any{"cause": err.Error()})
	}

	s.mu.Lock()
	if err := s.checkTransitionLocked(StateAuthenticated); err != nil {
		s.mu.Unlock()
		return err
	}

	from := s.state
	s.state = StateAuthenticated
	s.accessToken = accessToken
	s.tokenExpiry = decoded.Expiry
	s.refreshToken = refreshToken
	s.user = user.clone()
	s.lastError = ""
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	s.emit(ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
		FromState: from,
		ToState:   StateAuthenticated,
	}, subs)

	return nil
}

// FailLogin records a failed login attempt. Lockout fields are left alone;
// those are only ever set through RecordLockout.
func (s *Store) FailLogin(reason string) error {
	s.mu.Lock()
	if s.state == StateAuthenticated || s.state == StateRefreshing {
		s.mu.Unlock()
		return ErrInvalidStateTransition.WithMetadata(map[string]any{
			"from": s.state,
			"to":   StateAnonymous,
		})
	}

	from := s.state
	s.state = StateAnonymous
	s.lastError = reason
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	s.emit(ActivityEvent{
		EventType: ActivityEventLoginFailure,
		FromState: from,
		ToState:   StateAnonymous,
		Metadata:  map[string]any{"reason": reason},
	}, subs)

	return nil
}

// RecordLockout stores the server-asserted lockout expiry. The client never
// infers lockout from repeated failures on its own.
func (s *Store) RecordLockout(expiry time.Time) {
	s.mu.Lock()
	s.locked = true
	s.lockoutExpiry = expiry
	state := s.state
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	s.emit(ActivityEvent{
		EventType: ActivityEventLockoutRecorded,
		FromState: state,
		ToState:   state,
		Metadata:  map[string]any{"lockout_expiry": expiry},
	}, subs)
}

// ClearLockoutIfExpired clears the lockout flag once now has reached the
// recorded expiry. Idempotent; returns true only on the clearing call.
func (s *Store) ClearLockoutIfExpired(now time.Time) bool {
	s.mu.Lock()
	if !s.locked || now.Before(s.lockoutExpiry) {
		s.mu.Unlock()
		return false
	}

	s.locked = false
	s.lockoutExpiry = time.Time{}
	state := s.state
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	s.emit(ActivityEvent{
		EventType: ActivityEventLockoutCleared,
		FromState: state,
		ToState:   state,
	}, subs)

	return true
}

// BeginRefresh moves an authenticated session into the refreshing state and
// returns the generation the eventual CompleteRefresh must present.
func (s *Store) BeginRefresh() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return 0, ErrNoRefreshToken
	}

	if err := s.checkTransitionLocked(StateRefreshing); err != nil {
		return 0, err
	}

	s.state = StateRefreshing
	s.generation++
	return s.generation, nil
}

// CompleteRefresh rotates the access token and permitted modules. A result
// carrying a stale generation (the session was logged out or failed while the
// refresh was in flight) is discarded without error. The refresh token itself
// never rotates here.
func (s *Store) CompleteRefresh(generation uint64, accessToken string, permittedModules []string) error {
	decoded, err := DecodeToken(accessToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateRefreshing || generation != s.generation {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("discarding stale refresh result, state=%s generation=%d", state, generation)
		return nil
	}

	s.state = StateAuthenticated
	s.accessToken = accessToken
	s.tokenExpiry = decoded.Expiry
	var userID string
	if s.user != nil {
		s.user.PermittedModules = append([]string(nil), permittedModules...)
		userID = s.user.ID
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	s.emit(ActivityEvent{
		EventType: ActivityEventRefreshSuccess,
		UserID:    userID,
		FromState: StateRefreshing,
		ToState:   StateAuthenticated,
	}, subs)

	return nil
}

// AbortRefresh unwinds a refresh that failed for transient reasons, such as a
// network error reaching the refresh endpoint. The session returns to
// authenticated with both tokens intact; no teardown runs. A stale generation
// is ignored.
func (s *Store) AbortRefresh(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRefreshing || generation != s.generation {
		return
	}

	s.state = StateAuthenticated
}

// FailRefresh ends the session after an unrecoverable refresh failure. Session
// fields are cleared synchronously and dependent-store teardown runs through
// the subscribers before this call returns.
func (s *Store) FailRefresh(reason string) {
	s.endSession(ActivityEventRefreshFailure, reason)
}

// Logout ends the session unconditionally, clearing both tokens immediately.
// It does not wait for any server-side logout call: logout is local-first.
func (s *Store) Logout() {
	s.endSession(ActivityEventLogout, "")
}

func (s *Store) endSession(event ActivityEventType, reason string) {
	s.mu.Lock()
	from := s.state
	var userID string
	if s.user != nil {
		userID = s.user.ID
	}

	s.state = StateLoggedOut
	s.generation++
	s.accessToken = ""
	s.refreshToken = ""
	s.tokenExpiry = time.Time{}
	s.user = nil
	if reason != "" {
		s.lastError = reason
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	var metadata map[string]any
	if reason != "" {
		metadata = map[string]any{"reason": reason}
	}

	s.emit(ActivityEvent{
		EventType: event,
		UserID:    userID,
		FromState: from,
		ToState:   StateLoggedOut,
		Metadata:  metadata,
	}, subs)
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Session{
		State:         s.state,
		AccessToken:   s.accessToken,
		RefreshToken:  s.refreshToken,
		TokenExpiry:   s.tokenExpiry,
		Locked:        s.locked,
		LockoutExpiry: s.lockoutExpiry,
		LastError:     s.lastError,
	}
	if s.user != nil {
		snap.User = s.user.clone()
	}
	return snap
}

// State returns the current auth state.
func (s *Store) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessToken returns the current access token, empty when not authenticated.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// TokenExpiry returns the decoded expiry of the current access token.
func (s *Store) TokenExpiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenExpiry
}

// IsLocked returns the lockout flag and the server-asserted expiry.
func (s *Store) IsLocked() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked, s.lockoutExpiry
}

// LastError returns the most recent recorded failure reason.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Generation returns the refresh generation counter.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Store) checkTransitionLocked(target AuthState) error {
	if allowed, ok := s.transitions[s.state]; ok {
		if _, exists := allowed[target]; exists {
			return nil
		}
	}
	return ErrInvalidStateTransition.WithMetadata(map[string]any{
		"from": s.state,
		"to":   target,
	})
}

func (s *Store) subscriberListLocked() []Subscriber {
	if len(s.subscribers) == 0 {
		return nil
	}
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	return subs
}

// emit runs outside the store lock: subscribers are free to read the store.
func (s *Store) emit(event ActivityEvent, subs []Subscriber) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(context.Background(), event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}

	for _, fn := range subs {
		fn(event)
	}
}
