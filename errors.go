package session

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeMalformedToken       = "MALFORMED_TOKEN"
	textCodeInvalidLoginResponse = "INVALID_LOGIN_RESPONSE"
	textCodeNoRefreshToken       = "NO_REFRESH_TOKEN"
	textCodeAuthorizationExpired = "AUTHORIZATION_EXPIRED"
	textCodeInvalidTransition    = "INVALID_SESSION_STATE_TRANSITION"
	textCodeAccountLocked        = "ACCOUNT_LOCKED"
)

// ErrMalformedToken is returned when a token payload cannot be decoded or
// lacks a numeric expiry claim.
var ErrMalformedToken = goerrors.New("token payload cannot be decoded", goerrors.CategoryBadInput).
	WithTextCode(textCodeMalformedToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidLoginResponse is returned when the server's login success response
// is missing required fields. Detail lives in metadata, the message stays generic.
var ErrInvalidLoginResponse = goerrors.New("login failed", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidLoginResponse).
	WithCode(goerrors.CodeBadRequest)

// ErrNoRefreshToken signals a refresh attempted without a session. This is a
// programming-contract error, not a user-facing condition.
var ErrNoRefreshToken = goerrors.New("no refresh token present", goerrors.CategoryInternal).
	WithTextCode(textCodeNoRefreshToken).
	WithCode(goerrors.CodeInternal)

// ErrAuthorizationExpired is returned when the silent refresh itself failed;
// terminal for the current session.
var ErrAuthorizationExpired = goerrors.New("session expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(textCodeAuthorizationExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidStateTransition is returned when a requested session state change
// is not allowed.
var ErrInvalidStateTransition = goerrors.New("invalid session state transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// ErrAccountLocked is returned when a login attempt is rejected because the
// account is temporarily locked. Carries "lockout_expiry" metadata.
var ErrAccountLocked = goerrors.New("account is temporarily locked", goerrors.CategoryRateLimit).
	WithTextCode(textCodeAccountLocked).
	WithCode(goerrors.CodeTooManyRequests)

// IsAuthorizationExpired reports whether err is the terminal refresh failure.
func IsAuthorizationExpired(err error) bool {
	return hasTextCode(err, textCodeAuthorizationExpired)
}

// IsMalformedTokenError reports whether err stems from an undecodable token.
func IsMalformedTokenError(err error) bool {
	return hasTextCode(err, textCodeMalformedToken)
}

// LockoutExpiryFromError extracts the server-asserted lockout expiry from a
// rejected login error, if present.
func LockoutExpiryFromError(err error) (time.Time, bool) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != textCodeAccountLocked {
		return time.Time{}, false
	}
	expiry, ok := rich.Metadata["lockout_expiry"].(time.Time)
	return expiry, ok
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}
