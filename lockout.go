package session

import (
	"sync"
	"time"
)

// MonitorOption customizes monitor construction.
type MonitorOption func(*Monitor)

// WithMonitorInterval overrides the tick interval (default 1s).
func WithMonitorInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithMonitorClock injects a custom clock (useful for tests).
func WithMonitorClock(clock func() time.Time) MonitorOption {
	return func(m *Monitor) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithMonitorLogger overrides the monitor logger.
func WithMonitorLogger(logger Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor polls the store while the account is flagged locked, clearing the
// flag once the server-asserted expiry passes. The store's lockout-recorded
// event starts it; the cleared and session-ended events stop it, so no timer
// runs while the account is not locked.
type Monitor struct {
	store    *Store
	interval time.Duration
	now      func() time.Time
	logger   Logger

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// NewMonitor returns a monitor subscribed to the store's lockout transitions.
func NewMonitor(store *Store, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		store:    store,
		interval: time.Second,
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	store.Subscribe(m.handleEvent)

	return m
}

// Start begins ticking. A no-op while the account is not locked or a tick loop
// is already running.
func (m *Monitor) Start() {
	if locked, _ := m.store.IsLocked(); !locked {
		return
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.logger.Debug("lockout monitor started, interval=%s", m.interval)
	go m.run(stop)
}

// Stop halts the tick loop. Idempotent and safe when never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.running = false
	close(m.stop)
	m.stop = nil
}

// Running reports whether a tick loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// ClearLockoutIfExpired is the only mutation path; the monitor
			// never sets the lock flag itself.
			if m.store.ClearLockoutIfExpired(m.now()) {
				m.Stop()
				return
			}
		}
	}
}

func (m *Monitor) handleEvent(event ActivityEvent) {
	switch {
	case event.EventType == ActivityEventLockoutRecorded:
		m.Start()
	case event.EventType == ActivityEventLockoutCleared || event.SessionEnded():
		m.Stop()
	}
}
