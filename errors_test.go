package session_test

import (
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	assert.Equal(t, goerrors.CategoryBadInput, session.ErrMalformedToken.Category)
	assert.Equal(t, goerrors.CategoryValidation, session.ErrInvalidLoginResponse.Category)
	assert.Equal(t, goerrors.CategoryInternal, session.ErrNoRefreshToken.Category)
	assert.Equal(t, goerrors.CategoryAuth, session.ErrAuthorizationExpired.Category)
	assert.Equal(t, goerrors.CategoryConflict, session.ErrInvalidStateTransition.Category)
	assert.Equal(t, goerrors.CategoryRateLimit, session.ErrAccountLocked.Category)
}

func TestErrorMessagesStayGeneric(t *testing.T) {
	// Login response detail lives in metadata, never in the user-facing message.
	assert.Equal(t, "login failed", session.ErrInvalidLoginResponse.Message)
	assert.Equal(t, "session expired, please log in again", session.ErrAuthorizationExpired.Message)
}

func TestIsAuthorizationExpired(t *testing.T) {
	assert.False(t, session.IsAuthorizationExpired(nil))
	assert.False(t, session.IsAuthorizationExpired(fmt.Errorf("boom")))
	assert.True(t, session.IsAuthorizationExpired(session.ErrAuthorizationExpired))

	wrapped := goerrors.Wrap(
		fmt.Errorf("refresh token revoked"),
		session.ErrAuthorizationExpired.Category,
		session.ErrAuthorizationExpired.Message,
	).WithTextCode(session.ErrAuthorizationExpired.TextCode)
	assert.True(t, session.IsAuthorizationExpired(wrapped))
}

func TestIsMalformedTokenError(t *testing.T) {
	assert.False(t, session.IsMalformedTokenError(nil))
	assert.False(t, session.IsMalformedTokenError(session.ErrAuthorizationExpired))
	assert.True(t, session.IsMalformedTokenError(session.ErrMalformedToken))

	_, err := session.DecodeToken("broken")
	assert.True(t, session.IsMalformedTokenError(err))
}

func TestLockoutExpiryFromError(t *testing.T) {
	expiry := time.Now().Add(time.Minute)

	_, ok := session.LockoutExpiryFromError(nil)
	assert.False(t, ok)

	_, ok = session.LockoutExpiryFromError(session.ErrInvalidLoginResponse)
	assert.False(t, ok)

	// Locked error without metadata: flag matches but no expiry to extract.
	noExpiry := goerrors.New("account is temporarily locked", goerrors.CategoryRateLimit).
		WithTextCode(session.ErrAccountLocked.TextCode)
	_, ok = session.LockoutExpiryFromError(noExpiry)
	assert.False(t, ok)

	got, ok := session.LockoutExpiryFromError(
		session.ErrAccountLocked.WithMetadata(map[string]any{"lockout_expiry": expiry}),
	)
	assert.True(t, ok)
	assert.Equal(t, expiry, got)
}
