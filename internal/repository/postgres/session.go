package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
	"github.com/reelplatform/reelauth/internal/repository"
)

type SessionRepo struct {
	DB DBTX
}

const createSession = `-- name: CreateSession
INSERT INTO sessions (id, user_id, initiated_at, expires_at, last_refresh_token_hash, is_revoked)
VALUES ($1, $2, now(), $3, $4, false)
RETURNING id, user_id, initiated_at, expires_at, last_refresh_token_hash, is_revoked
`

func (r *SessionRepo) Create(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, rawToken string, expiresAt time.Time) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, createSession, sessionID, userID, expiresAt, repository.TokenHash(rawToken))
	session, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		return session, storeErr("create session", err)
	}

	return session, nil
}

const extendSession = `-- name: ExtendSession
UPDATE sessions
SET expires_at = $2, last_refresh_token_hash = $3
WHERE id = $1
  AND NOT is_revoked
  AND expires_at > now()
  AND last_refresh_token_hash = $4
RETURNING id, user_id, initiated_at, expires_at, last_refresh_token_hash, is_revoked
`

const sessionExists = `-- name: SessionExists
SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)
`

// Extend rotates the pinned token hash with a guarded single-row update.
// The WHERE clause is the compare-and-set: a concurrent rotation, revocation
// or expiry leaves zero rows updated and the caller is denied.
func (r *SessionRepo) Extend(ctx context.Context, sessionID uuid.UUID, presentedToken string, nextToken string, expiresAt time.Time) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, extendSession, sessionID, expiresAt, repository.TokenHash(nextToken), repository.TokenHash(presentedToken))
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing matched: either the session lost the race or the caller
		// never validated its existence. The latter is a contract violation,
		// report it loudly instead of folding it into a denial.
		exRows, _ := r.DB.Query(ctx, sessionExists, sessionID)
		exists, exErr := pgx.CollectOneRow(exRows, pgx.RowTo[bool])
		if exErr != nil {
			return session, storeErr("extend session", exErr)
		}
		if !exists {
			return session, apperrors.ErrSessionNotFound
		}
		return session, apperrors.ErrSessionInvalid
	default:
		return session, storeErr("extend session", err)
	}
}

const invalidateSession = `-- name: InvalidateSession
UPDATE sessions
SET is_revoked = true
WHERE id = $1
`

// Invalidate revokes the session. Revocation is terminal and idempotent:
// nonexistent or already revoked sessions are a no-op.
func (r *SessionRepo) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, invalidateSession, sessionID)
	if err != nil {
		return storeErr("invalidate session", err)
	}

	return nil
}

const invalidateUserSessions = `-- name: InvalidateUserSessions
UPDATE sessions
SET is_revoked = true
WHERE user_id = $1
`

func (r *SessionRepo) InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, invalidateUserSessions, userID)
	if err != nil {
		return storeErr("invalidate user sessions", err)
	}

	return nil
}

const sessionIsValid = `-- name: SessionIsValid
SELECT EXISTS (
    SELECT 1 FROM sessions
    WHERE id = $1
      AND NOT is_revoked
      AND expires_at > now()
      AND last_refresh_token_hash = $2
)
`

func (r *SessionRepo) IsValid(ctx context.Context, sessionID uuid.UUID, rawToken string) (bool, error) {
	rows, _ := r.DB.Query(ctx, sessionIsValid, sessionID, repository.TokenHash(rawToken))
	valid, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, storeErr("session validity", err)
	}

	return valid, nil
}

const getSession = `-- name: GetSession
SELECT id, user_id, initiated_at, expires_at, last_refresh_token_hash, is_revoked
FROM sessions
WHERE id = $1
`

// Get returns the session record even if it is revoked or expired
func (r *SessionRepo) Get(ctx context.Context, sessionID uuid.UUID) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSession, sessionID)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, storeErr("get session", err)
	}
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.InitiatedAt, &s.ExpiresAt, &s.LastTokenHash, &s.IsRevoked)
	return s, err
}
