package session_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
)

func TestMonitorClearsLockoutAfterExpiry(t *testing.T) {
	store := session.NewStore()
	monitor := session.NewMonitor(store, session.WithMonitorInterval(5*time.Millisecond))

	store.RecordLockout(time.Now().Add(30 * time.Millisecond))
	assert.True(t, monitor.Running(), "lockout must start the monitor")

	assert.Eventually(t, func() bool {
		locked, _ := store.IsLocked()
		return !locked
	}, time.Second, 5*time.Millisecond, "lockout should clear once the expiry passes")

	assert.Eventually(t, func() bool {
		return !monitor.Running()
	}, time.Second, 5*time.Millisecond, "monitor must stop once the flag clears")
}

func TestMonitorDoesNotRunWhileUnlocked(t *testing.T) {
	store := session.NewStore()
	monitor := session.NewMonitor(store)

	monitor.Start()
	assert.False(t, monitor.Running(), "no tick is scheduled while the account is not locked")
}

func TestMonitorStopIdempotent(t *testing.T) {
	store := session.NewStore()
	monitor := session.NewMonitor(store)

	monitor.Stop()
	monitor.Stop()
	assert.False(t, monitor.Running())
}

func TestMonitorStartIdempotent(t *testing.T) {
	store := session.NewStore()
	monitor := session.NewMonitor(store, session.WithMonitorInterval(5*time.Millisecond))

	store.RecordLockout(time.Now().Add(time.Minute))
	monitor.Start()
	monitor.Start()
	assert.True(t, monitor.Running())

	monitor.Stop()
	assert.False(t, monitor.Running())
}

func TestMonitorStopsOnSessionEnd(t *testing.T) {
	store := session.NewStore()
	monitor := session.NewMonitor(store, session.WithMonitorInterval(5*time.Millisecond))

	authenticate(t, store, futureToken(t))
	store.RecordLockout(time.Now().Add(time.Minute))
	assert.True(t, monitor.Running())

	store.Logout()
	assert.False(t, monitor.Running(), "teardown must not leak a tick handle past session end")
}

func TestMonitorOnlyClearsThroughStore(t *testing.T) {
	store := session.NewStore()
	clock := time.Now
	session.NewMonitor(store, session.WithMonitorInterval(5*time.Millisecond), session.WithMonitorClock(clock))

	expiry := time.Now().Add(20 * time.Millisecond)
	store.RecordLockout(expiry)

	assert.Eventually(t, func() bool {
		locked, _ := store.IsLocked()
		return !locked
	}, time.Second, 5*time.Millisecond)

	// Cleared state is observable through the store, not monitor internals.
	_, remaining := store.IsLocked()
	assert.True(t, remaining.IsZero())
}
