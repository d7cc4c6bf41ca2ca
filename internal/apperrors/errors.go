package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Login failed: unknown user or wrong password.
	// Never tell the caller which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token is malformed, tampered or expired.
	// All three collapse into one error so callers can't probe why a token failed.
	ErrInvalidToken = errors.New("invalid token")

	// Session exists but is revoked, expired or pinned to another refresh token
	ErrSessionInvalid = errors.New("session invalid")

	// Session record is missing where the caller contract requires it to exist
	ErrSessionNotFound = errors.New("session not found")

	// Storage failure. Infrastructure problem, not a security denial,
	// must stay distinguishable from the errors above
	ErrStoreUnavailable = errors.New("session store unavailable")
)
