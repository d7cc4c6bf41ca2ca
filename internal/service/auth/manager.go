package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
	"github.com/reelplatform/reelauth/internal/repository"
	"github.com/reelplatform/reelauth/internal/service/auth/tokencodec"
)

// Session lifetime, the order of days. Access tokens live minutes,
// their TTL belongs to the codec.
const defaultSessionTTL = 72 * time.Hour

// CredentialVerifier is the capability the manager consumes to turn
// credentials into a verified principal. The manager never sees passwords
// hashes or how roles are stored.
type CredentialVerifier interface {
	// Authenticate verifies username/password and returns the principal.
	// Any failure must be apperrors.ErrInvalidCredentials, with no hint
	// whether the username or the password was wrong.
	Authenticate(ctx context.Context, username string, password string) (models.Principal, error)

	// Resolve returns the current principal for the user id. Roles may have
	// changed since login, refresh re-reads them through this call.
	Resolve(ctx context.Context, userID uuid.UUID) (models.Principal, error)
}

type Config struct {
	// How long a session (and its refresh tokens) lives.
	// If not set then default is used
	SessionTTL time.Duration
}

// SessionManager orchestrates the login, silent-refresh and logout protocols
// over the token codec, the session store and the credential verifier.
//
// Per session at most one refresh token is valid at any time: every refresh
// rotates the token and the store pins the session to the newest hash, so a
// superseded token is denied even before it expires.
type SessionManager struct {
	codec      *tokencodec.Codec
	sessions   repository.SessionRepo
	verifier   CredentialVerifier
	sessionTTL time.Duration
}

func NewSessionManager(cfg Config, codec *tokencodec.Codec, sessions repository.SessionRepo, verifier CredentialVerifier) (*SessionManager, error) {
	if codec == nil || sessions == nil || verifier == nil {
		return nil, errors.New("codec, session repo and verifier must not be nil")
	}

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	return &SessionManager{
		codec:      codec,
		sessions:   sessions,
		verifier:   verifier,
		sessionTTL: cfg.SessionTTL,
	}, nil
}

// Login verifies credentials, opens a new session and returns the token pair
func (m *SessionManager) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	principal, err := m.verifier.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			return models.TokenPair{}, err
		}
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	sessionID := uuid.New()
	expiresAt := time.Now().Add(m.sessionTTL).Truncate(time.Second)

	pair, err := m.issuePair(principal, sessionID, expiresAt)
	if err != nil {
		return models.TokenPair{}, err
	}

	_, err = m.sessions.Create(ctx, sessionID, principal.UserID, pair.Refresh.Value, expiresAt)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while creating session. Err: %w", err)
	}

	return pair, nil
}

// Refresh rotates the session: verifies the presented refresh token, re-reads
// the principal's current roles and issues a fresh pair bound to the same
// session. The presented token is single-use, after a successful rotation it
// fails the store's hash comparison for good.
func (m *SessionManager) Refresh(ctx context.Context, rawRefresh string) (models.TokenPair, error) {
	claims, err := m.codec.ParseRefreshToken(rawRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	valid, err := m.sessions.IsValid(ctx, claims.SessionID, rawRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}
	if !valid {
		return models.TokenPair{}, apperrors.ErrSessionInvalid
	}

	// Roles may have changed since the session was opened
	principal, err := m.verifier.Resolve(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			return models.TokenPair{}, err
		}
		return models.TokenPair{}, apperrors.ErrSessionInvalid
	}

	expiresAt := time.Now().Add(m.sessionTTL).Truncate(time.Second)
	pair, err := m.issuePair(principal, claims.SessionID, expiresAt)
	if err != nil {
		return models.TokenPair{}, err
	}

	// Guarded rotation: when two refreshes race on the same session the
	// store lets exactly one through, the loser is denied here.
	_, err = m.sessions.Extend(ctx, claims.SessionID, rawRefresh, pair.Refresh.Value, expiresAt)
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout revokes the session behind the refresh token. Revocation is
// terminal: no refresh can resurrect the session afterwards. An unparseable
// or missing token means there is nothing left to revoke, that is a success.
func (m *SessionManager) Logout(ctx context.Context, rawRefresh string) error {
	claims, err := m.codec.ParseRefreshToken(rawRefresh)
	if err != nil {
		return nil
	}

	return m.sessions.Invalidate(ctx, claims.SessionID)
}

// LogoutAll revokes every session the user owns
func (m *SessionManager) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return m.sessions.InvalidateAllForUser(ctx, userID)
}

// Authorize verifies an access token and returns the principal it carries.
// Purely cryptographic, no store lookup: that is what keeps resource
// requests cheap and what bounds revocation latency to the access TTL.
func (m *SessionManager) Authorize(ctx context.Context, rawAccess string) (models.Principal, error) {
	return m.codec.ParseAccessToken(rawAccess)
}

func (m *SessionManager) issuePair(principal models.Principal, sessionID uuid.UUID, expiresAt time.Time) (models.TokenPair, error) {
	access, err := m.codec.CreateAccessToken(principal)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	refresh, err := m.codec.CreateRefreshToken(sessionID, principal.UserID, expiresAt)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}
