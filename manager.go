package session

import (
	"context"
	"net/http"
	"time"
)

type managerOptions struct {
	logger          Logger
	sink            ActivitySink
	http            HTTPDoer
	snapshots       SnapshotStore
	purgers         []Purger
	clock           func() time.Time
	monitorInterval time.Duration
}

// ManagerOption customizes manager construction.
type ManagerOption func(*managerOptions)

// WithManagerLogger sets the logger shared by every component.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithManagerActivitySink forwards session lifecycle events to sink.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(o *managerOptions) {
		o.sink = sink
	}
}

// WithManagerHTTP overrides the HTTP transport for both the backend client and
// the gateway (useful for tests).
func WithManagerHTTP(doer HTTPDoer) ManagerOption {
	return func(o *managerOptions) {
		o.http = doer
	}
}

// WithManagerSnapshots overrides the snapshot store (in-memory by default).
func WithManagerSnapshots(snapshots SnapshotStore) ManagerOption {
	return func(o *managerOptions) {
		if snapshots != nil {
			o.snapshots = snapshots
		}
	}
}

// WithManagerPurgers registers dependent caches purged on session end.
func WithManagerPurgers(purgers ...Purger) ManagerOption {
	return func(o *managerOptions) {
		o.purgers = append(o.purgers, purgers...)
	}
}

// WithManagerClock injects a custom clock into the store and monitor.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(o *managerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithManagerMonitorInterval overrides the lockout tick interval.
func WithManagerMonitorInterval(interval time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if interval > 0 {
			o.monitorInterval = interval
		}
	}
}

// Manager wires the session components together: store, backend client,
// gateway, lockout monitor, and teardown.
type Manager struct {
	config    Config
	store     *Store
	client    *Client
	gateway   *Gateway
	monitor   *Monitor
	teardown  *Teardown
	snapshots SnapshotStore
	logger    Logger
}

// NewManager builds a fully wired session manager for the configured backend.
func NewManager(config Config, opts ...ManagerOption) *Manager {
	o := &managerOptions{
		logger:          defLogger{},
		snapshots:       NewMemorySnapshotStore(),
		clock:           time.Now,
		monitorInterval: time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	storeOpts := []StoreOption{
		WithStoreLogger(o.logger),
		WithStoreClock(o.clock),
	}
	if o.sink != nil {
		storeOpts = append(storeOpts, WithStoreActivitySink(o.sink))
	}
	store := NewStore(storeOpts...)

	clientOpts := []ClientOption{WithClientLogger(o.logger)}
	if o.http != nil {
		clientOpts = append(clientOpts, WithClientHTTP(o.http))
	}
	client := NewClient(config, clientOpts...)

	gatewayOpts := []GatewayOption{
		WithGatewayLogger(o.logger),
		WithGatewayAuthScheme(config.GetAuthScheme()),
	}
	if o.http != nil {
		gatewayOpts = append(gatewayOpts, WithGatewayTransport(o.http))
	}
	gateway := NewGateway(store, client, gatewayOpts...)

	monitor := NewMonitor(store,
		WithMonitorLogger(o.logger),
		WithMonitorClock(o.clock),
		WithMonitorInterval(o.monitorInterval),
	)

	teardown := NewTeardown(store,
		WithTeardownLogger(o.logger),
		WithTeardownSnapshots(o.snapshots),
		WithTeardownMonitor(monitor),
		WithTeardownPurgers(o.purgers...),
	)

	m := &Manager{
		config:    config,
		store:     store,
		client:    client,
		gateway:   gateway,
		monitor:   monitor,
		teardown:  teardown,
		snapshots: o.snapshots,
		logger:    o.logger,
	}

	store.Subscribe(m.persistSnapshot)

	return m
}

// Login authenticates against the backend and populates the session. A locked
// account records the server-asserted lockout expiry, which starts the
// countdown monitor.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.store.BeginLogin(); err != nil {
		return err
	}

	res, err := m.client.Login(ctx, email, password)
	if err != nil {
		if expiry, ok := LockoutExpiryFromError(err); ok {
			m.store.RecordLockout(expiry)
		}
		if ferr := m.store.FailLogin(err.Error()); ferr != nil {
			m.logger.Warn("could not record login failure: %v", ferr)
		}
		return err
	}

	if err := m.store.CompleteLogin(res.AccessToken, res.RefreshToken, res.User); err != nil {
		if ferr := m.store.FailLogin("login failed"); ferr != nil {
			m.logger.Warn("could not record login failure: %v", ferr)
		}
		return err
	}

	return nil
}

// Logout ends the session local-first: store state and dependent caches are
// cleared before the server-side revocation call, and a failed revocation
// never reverses the local teardown.
func (m *Manager) Logout(ctx context.Context) {
	refreshToken := m.store.RefreshToken()
	m.store.Logout()

	if refreshToken == "" {
		return
	}

	if err := m.client.Logout(ctx, refreshToken); err != nil {
		m.logger.Warn("server-side logout failed: %v", err)
	}
}

// Restore rehydrates the session from a persisted snapshot, if one exists.
// An expired token is restored as-is; the gateway refreshes it on first use.
func (m *Manager) Restore() error {
	if m.snapshots == nil {
		return nil
	}

	snapshot, ok, err := m.snapshots.Load()
	if err != nil {
		return err
	}
	if !ok || snapshot.User == nil {
		return nil
	}

	return m.store.CompleteLogin(snapshot.AccessToken, snapshot.RefreshToken, *snapshot.User)
}

// Do dispatches an authenticated request through the gateway.
func (m *Manager) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return m.gateway.Do(ctx, req)
}

// Store returns the session store.
func (m *Manager) Store() *Store { return m.store }

// Gateway returns the request gateway.
func (m *Manager) Gateway() *Gateway { return m.gateway }

// Client returns the backend client.
func (m *Manager) Client() *Client { return m.client }

// Monitor returns the lockout monitor.
func (m *Manager) Monitor() *Monitor { return m.monitor }

// Teardown returns the session teardown.
func (m *Manager) Teardown() *Teardown { return m.teardown }

func (m *Manager) persistSnapshot(event ActivityEvent) {
	if event.EventType != ActivityEventLoginSuccess && event.EventType != ActivityEventRefreshSuccess {
		return
	}
	if m.snapshots == nil {
		return
	}

	current := m.store.Session()
	err := m.snapshots.Save(SessionSnapshot{
		AccessToken:  current.AccessToken,
		RefreshToken: current.RefreshToken,
		TokenExpiry:  current.TokenExpiry,
		User:         current.User,
	})
	if err != nil {
		m.logger.Warn("could not persist session snapshot: %v", err)
	}
}
