package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, roles []string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Session repository interface
//
// Raw refresh tokens never cross the storage boundary: every implementation
// hashes the token (TokenHash) before persisting or comparing it.
// Infrastructure failures are reported as apperrors.ErrStoreUnavailable.
type SessionRepo interface {
	// Create inserts a new session pinned to the hash of rawToken.
	// The insert is atomic: either the full record is visible or none of it.
	Create(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, rawToken string, expiresAt time.Time) (models.Session, error)

	// Extend rotates the session to nextToken and pushes expiry to expiresAt.
	// The update is guarded: it applies only while the session is alive and
	// still pinned to presentedToken, so of N concurrent rotations exactly
	// one wins. Losers get apperrors.ErrSessionInvalid.
	// A missing session is a caller bug and fails loudly with
	// apperrors.ErrSessionNotFound, implementations must never upsert here.
	Extend(ctx context.Context, sessionID uuid.UUID, presentedToken string, nextToken string, expiresAt time.Time) (models.Session, error)

	// Invalidate marks the session revoked. Idempotent: revoking an already
	// revoked or nonexistent session is a no-op, not an error.
	Invalidate(ctx context.Context, sessionID uuid.UUID) error

	// InvalidateAllForUser revokes every session owned by the user
	InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error

	// IsValid reports whether the session exists, is not revoked, has not
	// expired and is pinned to rawToken. A single false, no reasons.
	IsValid(ctx context.Context, sessionID uuid.UUID, rawToken string) (bool, error)

	// Get returns the session record even if it is revoked or expired.
	// If the session does not exist returns apperrors.ErrSessionNotFound
	Get(ctx context.Context, sessionID uuid.UUID) (models.Session, error)
}

// TokenHash is the one-way hash stored instead of a raw refresh token.
// Refresh tokens are high-entropy signed artifacts already, so a fast
// collision-resistant hash is enough, this is not a password hash.
func TokenHash(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
