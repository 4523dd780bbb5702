package session

import (
	"sync"
	"time"
)

// License is a session-scoped entitlement record cached client-side.
type License struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Key       string    `json:"key,omitempty"`
	Module    string    `json:"module,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

var _ Purger = (*LicenseCache)(nil)

// LicenseCache holds the license list and active license id for the current
// session. It implements Purger so Teardown resets it when the session ends.
type LicenseCache struct {
	mu       sync.Mutex
	licenses []License
	activeID string
}

// NewLicenseCache returns an empty cache.
func NewLicenseCache() *LicenseCache {
	return &LicenseCache{}
}

// SetLicenses replaces the cached license list.
func (c *LicenseCache) SetLicenses(licenses []License) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.licenses = make([]License, len(licenses))
	copy(c.licenses, licenses)
}

// Licenses returns a copy of the cached license list.
func (c *LicenseCache) Licenses() []License {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]License, len(c.licenses))
	copy(out, c.licenses)
	return out
}

// SetActiveLicenseID records which license the session is operating under.
func (c *LicenseCache) SetActiveLicenseID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = id
}

// ActiveLicenseID returns the active license id, if one is set.
func (c *LicenseCache) ActiveLicenseID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID, c.activeID != ""
}

// Purge implements Purger: empties the list and the active id.
func (c *LicenseCache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.licenses = nil
	c.activeID = ""
	return nil
}
