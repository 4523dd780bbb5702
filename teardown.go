package session

import (
	"sync"
	"time"
)

// Purger is implemented by stores holding session-scoped data that must not
// outlive the session.
type Purger interface {
	Purge() error
}

// PurgerFunc adapts a function to the Purger interface.
type PurgerFunc func() error

// Purge implements Purger.
func (f PurgerFunc) Purge() error {
	if f == nil {
		return nil
	}
	return f()
}

// SessionSnapshot is the opaque persisted mirror of the session. Its storage
// mechanism is an external collaborator; this package only writes and clears it.
type SessionSnapshot struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenExpiry  time.Time `json:"tokenExpiry"`
	User         *User     `json:"user,omitempty"`
}

// SnapshotStore persists the session snapshot across process restarts.
type SnapshotStore interface {
	Save(snapshot SessionSnapshot) error
	Load() (SessionSnapshot, bool, error)
	Clear() error
}

// MemorySnapshotStore is the in-process SnapshotStore used by default.
type MemorySnapshotStore struct {
	mu       sync.Mutex
	snapshot *SessionSnapshot
}

// NewMemorySnapshotStore returns an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save implements SnapshotStore.
func (m *MemorySnapshotStore) Save(snapshot SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snapshot
	return nil
}

// Load implements SnapshotStore.
func (m *MemorySnapshotStore) Load() (SessionSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return SessionSnapshot{}, false, nil
	}
	return *m.snapshot, true, nil
}

// Clear implements SnapshotStore.
func (m *MemorySnapshotStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}

// TeardownOption customizes teardown construction.
type TeardownOption func(*Teardown)

// WithTeardownSnapshots sets the snapshot store cleared on session end.
func WithTeardownSnapshots(snapshots SnapshotStore) TeardownOption {
	return func(t *Teardown) {
		t.snapshots = snapshots
	}
}

// WithTeardownMonitor sets the lockout monitor stopped on session end.
func WithTeardownMonitor(monitor *Monitor) TeardownOption {
	return func(t *Teardown) {
		t.monitor = monitor
	}
}

// WithTeardownLogger overrides the teardown logger.
func WithTeardownLogger(logger Logger) TeardownOption {
	return func(t *Teardown) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTeardownPurgers registers dependent caches purged on session end.
func WithTeardownPurgers(purgers ...Purger) TeardownOption {
	return func(t *Teardown) {
		for _, p := range purgers {
			if p != nil {
				t.purgers = append(t.purgers, p)
			}
		}
	}
}

// Teardown ensures no session-scoped data outlives the session. It runs in the
// same synchronous pass as the store transition that ends the session, so no
// reader observes a stale authenticated user alongside cleared caches.
type Teardown struct {
	mu        sync.Mutex
	purgers   []Purger
	snapshots SnapshotStore
	monitor   *Monitor
	logger    Logger
}

// NewTeardown returns a teardown subscribed to the store's session-ended events.
func NewTeardown(store *Store, opts ...TeardownOption) *Teardown {
	t := &Teardown{
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	store.Subscribe(func(event ActivityEvent) {
		if event.SessionEnded() {
			t.Run()
		}
	})

	return t
}

// Register adds a dependent cache to purge on session end.
func (t *Teardown) Register(p Purger) {
	if p == nil {
		return
	}
	t.mu.Lock()
	t.purgers = append(t.purgers, p)
	t.mu.Unlock()
}

// Run clears the snapshot, purges every registered cache, and stops the
// lockout monitor. Safe to call more than once.
func (t *Teardown) Run() {
	t.mu.Lock()
	purgers := make([]Purger, len(t.purgers))
	copy(purgers, t.purgers)
	snapshots := t.snapshots
	monitor := t.monitor
	t.mu.Unlock()

	if snapshots != nil {
		if err := snapshots.Clear(); err != nil {
			t.logger.Warn("teardown could not clear session snapshot: %v", err)
		}
	}

	for _, p := range purgers {
		if err := p.Purge(); err != nil {
			t.logger.Warn("teardown purge error: %v", err)
		}
	}

	if monitor != nil {
		monitor.Stop()
	}
}
