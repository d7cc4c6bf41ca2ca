package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
	"github.com/reelplatform/reelauth/internal/repository"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user-sessions:"

	// Expired sessions stay readable for a while so revocation state and
	// audit questions ("when was this session rotated last") survive expiry.
	auditRetention = 30 * 24 * time.Hour

	// Optimistic lock attempts before a contended rotation is denied
	maxCASRetries = 4
)

// SessionRepo keeps sessions as JSON records in Redis.
// Rotation uses WATCH-based compare-and-set, so concurrent refreshes of the
// same session settle on exactly one pinned hash, same as the SQL store.
type SessionRepo struct {
	rdb *redis.Client
}

func NewSessionRepo(rdb *redis.Client) *SessionRepo {
	return &SessionRepo{rdb: rdb}
}

type sessionRecord struct {
	UserID        uuid.UUID `json:"user_id"`
	InitiatedAt   time.Time `json:"initiated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastTokenHash string    `json:"last_refresh_token_hash"`
	IsRevoked     bool      `json:"is_revoked"`
}

func (rec sessionRecord) toSession(id uuid.UUID) models.Session {
	return models.Session{
		ID:            id,
		UserID:        rec.UserID,
		InitiatedAt:   rec.InitiatedAt,
		ExpiresAt:     rec.ExpiresAt,
		LastTokenHash: rec.LastTokenHash,
		IsRevoked:     rec.IsRevoked,
	}
}

func sessionKey(sessionID uuid.UUID) string {
	return sessionKeyPrefix + sessionID.String()
}

func userSessionsKey(userID uuid.UUID) string {
	return userSessionsKeyPrefix + userID.String()
}

func recordTTL(expiresAt time.Time) time.Duration {
	return time.Until(expiresAt) + auditRetention
}

func (r *SessionRepo) Create(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, rawToken string, expiresAt time.Time) (models.Session, error) {
	rec := sessionRecord{
		UserID:        userID,
		InitiatedAt:   time.Now().UTC(),
		ExpiresAt:     expiresAt,
		LastTokenHash: repository.TokenHash(rawToken),
		IsRevoked:     false,
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return models.Session{}, fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, sessionKey(sessionID), encoded, recordTTL(expiresAt)).Result()
	if err != nil {
		return models.Session{}, storeErr("create session", err)
	}
	if !ok {
		// Session ids are freshly minted uuids, a collision is store
		// corruption, not a credential problem
		return models.Session{}, storeErr("create session", fmt.Errorf("session %s already exists", sessionID))
	}

	// Index by owner so InvalidateAllForUser can find every session
	pipe := r.rdb.Pipeline()
	pipe.SAdd(ctx, userSessionsKey(userID), sessionID.String())
	pipe.Expire(ctx, userSessionsKey(userID), recordTTL(expiresAt))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Session{}, storeErr("index session", err)
	}

	return rec.toSession(sessionID), nil
}

func (r *SessionRepo) Extend(ctx context.Context, sessionID uuid.UUID, presentedToken string, nextToken string, expiresAt time.Time) (models.Session, error) {
	key := sessionKey(sessionID)
	var extended models.Session

	for i := 0; i < maxCASRetries; i++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			rec, err := getRecord(ctx, tx, key)
			if err != nil {
				return err
			}

			if rec.IsRevoked || !rec.ExpiresAt.After(time.Now()) || rec.LastTokenHash != repository.TokenHash(presentedToken) {
				return apperrors.ErrSessionInvalid
			}

			rec.ExpiresAt = expiresAt
			rec.LastTokenHash = repository.TokenHash(nextToken)
			encoded, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, recordTTL(expiresAt))
				return nil
			})
			if err != nil {
				return err
			}

			extended = rec.toSession(sessionID)
			return nil
		}, key)

		switch {
		case err == nil:
			return extended, nil
		case errors.Is(err, redis.TxFailedErr):
			// Lost the optimistic lock to a concurrent writer, retry against
			// the fresh record. A concurrent rotation changed the pinned hash,
			// so the retry will deny this caller.
			continue
		case errors.Is(err, apperrors.ErrSessionInvalid), errors.Is(err, apperrors.ErrSessionNotFound):
			return models.Session{}, err
		default:
			return models.Session{}, storeErr("extend session", err)
		}
	}

	return models.Session{}, apperrors.ErrSessionInvalid
}

func (r *SessionRepo) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	key := sessionKey(sessionID)

	for i := 0; i < maxCASRetries; i++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			rec, err := getRecord(ctx, tx, key)
			if err != nil {
				return err
			}
			if rec.IsRevoked {
				return nil
			}

			rec.IsRevoked = true
			encoded, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, recordTTL(rec.ExpiresAt))
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperrors.ErrSessionNotFound):
			// Invalidate is idempotent, a missing session is not an error
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return storeErr("invalidate session", err)
		}
	}

	return storeErr("invalidate session", redis.TxFailedErr)
}

func (r *SessionRepo) InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error {
	ids, err := r.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return storeErr("list user sessions", err)
	}

	for _, id := range ids {
		sessionID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		if err := r.Invalidate(ctx, sessionID); err != nil {
			return err
		}
	}

	return nil
}

func (r *SessionRepo) IsValid(ctx context.Context, sessionID uuid.UUID, rawToken string) (bool, error) {
	rec, err := getRecord(ctx, r.rdb, sessionKey(sessionID))
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return false, nil
	case err != nil:
		return false, storeErr("session validity", err)
	}

	valid := !rec.IsRevoked &&
		rec.ExpiresAt.After(time.Now()) &&
		rec.LastTokenHash == repository.TokenHash(rawToken)

	return valid, nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID uuid.UUID) (models.Session, error) {
	rec, err := getRecord(ctx, r.rdb, sessionKey(sessionID))
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return models.Session{}, err
	case err != nil:
		return models.Session{}, storeErr("get session", err)
	}

	return rec.toSession(sessionID), nil
}

// getRecord works over the client and the WATCH transaction both
func getRecord(ctx context.Context, c redis.Cmdable, key string) (sessionRecord, error) {
	var rec sessionRecord

	data, err := c.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return rec, apperrors.ErrSessionNotFound
	case err != nil:
		return rec, err
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode session: %w", err)
	}

	return rec, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrStoreUnavailable, err)
}
