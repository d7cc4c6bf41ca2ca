package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable record of one renewable login.
//
// LastTokenHash pins the session to the most recently issued refresh token:
// at most one valid refresh token exists per session at any time, so an older
// token fails the hash comparison even before it expires.
//
// Sessions are never deleted by normal operation. Expiry and revocation are
// logical and checked lazily at validation time, the rows stay for audit.
type Session struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	InitiatedAt   time.Time
	ExpiresAt     time.Time
	LastTokenHash string
	IsRevoked     bool
}
