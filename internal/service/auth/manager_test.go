package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
	"github.com/reelplatform/reelauth/internal/repository"
	"github.com/reelplatform/reelauth/internal/service/auth/tokencodec"
)

// memSessionRepo is an in-memory repository.SessionRepo with the same
// guarded-rotation semantics the real stores implement
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]models.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, sessionID uuid.UUID, userID uuid.UUID, rawToken string, expiresAt time.Time) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := models.Session{
		ID:            sessionID,
		UserID:        userID,
		InitiatedAt:   time.Now(),
		ExpiresAt:     expiresAt,
		LastTokenHash: repository.TokenHash(rawToken),
	}
	r.sessions[sessionID] = s
	return s, nil
}

func (r *memSessionRepo) Extend(_ context.Context, sessionID uuid.UUID, presentedToken string, nextToken string, expiresAt time.Time) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, apperrors.ErrSessionNotFound
	}
	if s.IsRevoked || time.Now().After(s.ExpiresAt) || s.LastTokenHash != repository.TokenHash(presentedToken) {
		return models.Session{}, apperrors.ErrSessionInvalid
	}

	s.LastTokenHash = repository.TokenHash(nextToken)
	s.ExpiresAt = expiresAt
	r.sessions[sessionID] = s
	return s, nil
}

func (r *memSessionRepo) Invalidate(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.IsRevoked = true
		r.sessions[sessionID] = s
	}
	return nil
}

func (r *memSessionRepo) InvalidateAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			s.IsRevoked = true
			r.sessions[id] = s
		}
	}
	return nil
}

func (r *memSessionRepo) IsValid(_ context.Context, sessionID uuid.UUID, rawToken string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false, nil
	}
	ok = !s.IsRevoked && time.Now().Before(s.ExpiresAt) && s.LastTokenHash == repository.TokenHash(rawToken)
	return ok, nil
}

func (r *memSessionRepo) Get(_ context.Context, sessionID uuid.UUID) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, apperrors.ErrSessionNotFound
	}
	return s, nil
}

// expire force-expires a stored session, bypassing the public surface
func (r *memSessionRepo) expire(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[sessionID]
	s.ExpiresAt = time.Now().Add(-time.Minute)
	r.sessions[sessionID] = s
}

type fakeVerifier struct {
	principal models.Principal
	password  string
	authErr   error
	resolved  models.Principal
	resolvErr error
}

func (v *fakeVerifier) Authenticate(_ context.Context, username string, password string) (models.Principal, error) {
	if v.authErr != nil {
		return models.Principal{}, v.authErr
	}
	if username != v.principal.Username || password != v.password {
		return models.Principal{}, apperrors.ErrInvalidCredentials
	}
	return v.principal, nil
}

func (v *fakeVerifier) Resolve(_ context.Context, userID uuid.UUID) (models.Principal, error) {
	if v.resolvErr != nil {
		return models.Principal{}, v.resolvErr
	}
	if v.resolved.UserID == userID {
		return v.resolved, nil
	}
	if v.principal.UserID == userID {
		return v.principal, nil
	}
	return models.Principal{}, apperrors.ErrUserNotFound
}

func newTestManager(t *testing.T, repo repository.SessionRepo, verifier CredentialVerifier) *SessionManager {
	t.Helper()

	codec, err := tokencodec.New(tokencodec.Config{SecretKey: "test-secret"})
	require.NoError(t, err)

	m, err := NewSessionManager(Config{SessionTTL: time.Hour}, codec, repo, verifier)
	require.NoError(t, err)
	return m
}

func TestSessionManager_Login(t *testing.T) {
	ctx := context.Background()
	principal := models.Principal{
		UserID:   uuid.New(),
		Username: "marta",
		Roles:    []string{models.RoleUser},
	}

	t.Run("opens session and returns pair", func(t *testing.T) {
		repo := newMemSessionRepo()
		m := newTestManager(t, repo, &fakeVerifier{principal: principal, password: "pass"})

		pair, err := m.Login(ctx, "marta", "pass")

		require.NoError(t, err)
		require.NotEmpty(t, pair.Access.Value)
		require.NotEmpty(t, pair.Refresh.Value)
		require.True(t, pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt), "refresh must outlive access")

		got, err := m.Authorize(ctx, pair.Access.Value)
		require.NoError(t, err)
		require.Equal(t, principal, got)

		require.Len(t, repo.sessions, 1, "exactly one session must be created")
	})

	t.Run("wrong credentials", func(t *testing.T) {
		m := newTestManager(t, newMemSessionRepo(), &fakeVerifier{principal: principal, password: "pass"})

		tests := []struct {
			name     string
			username string
			password string
		}{
			{"wrong password", "marta", "nope"},
			{"unknown user", "ghost", "pass"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.Login(ctx, tt.username, tt.password)
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		}
	})

	t.Run("store failure is not masked as bad credentials", func(t *testing.T) {
		m := newTestManager(t, newMemSessionRepo(), &fakeVerifier{authErr: apperrors.ErrStoreUnavailable})

		_, err := m.Login(ctx, "marta", "pass")

		require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
		require.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestSessionManager_Refresh(t *testing.T) {
	ctx := context.Background()
	principal := models.Principal{
		UserID:   uuid.New(),
		Username: "marta",
		Roles:    []string{models.RoleUser},
	}

	login := func(t *testing.T) (*SessionManager, *memSessionRepo, *fakeVerifier, models.TokenPair) {
		t.Helper()
		repo := newMemSessionRepo()
		verifier := &fakeVerifier{principal: principal, password: "pass"}
		m := newTestManager(t, repo, verifier)

		pair, err := m.Login(ctx, "marta", "pass")
		require.NoError(t, err)
		return m, repo, verifier, pair
	}

	t.Run("rotates token", func(t *testing.T) {
		m, _, _, pair := login(t)

		next, err := m.Refresh(ctx, pair.Refresh.Value)

		require.NoError(t, err)
		require.NotEqual(t, pair.Refresh.Value, next.Refresh.Value, "refresh token must rotate")

		// Superseded token is single-use: it must be dead now
		_, err = m.Refresh(ctx, pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid)

		// While the newest one keeps working
		_, err = m.Refresh(ctx, next.Refresh.Value)
		require.NoError(t, err)
	})

	t.Run("picks up current roles", func(t *testing.T) {
		m, _, verifier, pair := login(t)

		promoted := principal
		promoted.Roles = []string{models.RoleAdmin, models.RoleUser}
		verifier.resolved = promoted

		next, err := m.Refresh(ctx, pair.Refresh.Value)
		require.NoError(t, err)

		got, err := m.Authorize(ctx, next.Access.Value)
		require.NoError(t, err)
		require.Equal(t, promoted.Roles, got.Roles, "refresh must re-read roles")
	})

	t.Run("unparseable token", func(t *testing.T) {
		m, _, _, _ := login(t)

		_, err := m.Refresh(ctx, "not-a-token")

		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		m, _, _, pair := login(t)

		_, err := m.Refresh(ctx, pair.Access.Value)

		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("revoked session", func(t *testing.T) {
		m, _, _, pair := login(t)

		require.NoError(t, m.Logout(ctx, pair.Refresh.Value))

		_, err := m.Refresh(ctx, pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
	})

	t.Run("expired session", func(t *testing.T) {
		m, repo, _, pair := login(t)

		for id := range repo.sessions {
			repo.expire(id)
		}

		_, err := m.Refresh(ctx, pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
	})

	t.Run("concurrent refreshes let exactly one through", func(t *testing.T) {
		m, _, _, pair := login(t)

		const workers = 8
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, errs[n] = m.Refresh(ctx, pair.Refresh.Value)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			default:
				require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
			}
		}
		require.Equal(t, 1, won, "exactly one concurrent refresh must win")
	})
}

func TestSessionManager_Logout(t *testing.T) {
	ctx := context.Background()
	principal := models.Principal{
		UserID:   uuid.New(),
		Username: "marta",
		Roles:    []string{models.RoleUser},
	}

	t.Run("revokes session", func(t *testing.T) {
		repo := newMemSessionRepo()
		m := newTestManager(t, repo, &fakeVerifier{principal: principal, password: "pass"})
		pair, err := m.Login(ctx, "marta", "pass")
		require.NoError(t, err)

		err = m.Logout(ctx, pair.Refresh.Value)

		require.NoError(t, err)
		_, err = m.Refresh(ctx, pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid, "revocation must be terminal")
	})

	t.Run("idempotent", func(t *testing.T) {
		m := newTestManager(t, newMemSessionRepo(), &fakeVerifier{principal: principal, password: "pass"})
		pair, err := m.Login(ctx, "marta", "pass")
		require.NoError(t, err)

		require.NoError(t, m.Logout(ctx, pair.Refresh.Value))
		require.NoError(t, m.Logout(ctx, pair.Refresh.Value), "second logout must succeed")
	})

	t.Run("unparseable token is a success", func(t *testing.T) {
		m := newTestManager(t, newMemSessionRepo(), &fakeVerifier{principal: principal, password: "pass"})

		require.NoError(t, m.Logout(ctx, "garbage"))
		require.NoError(t, m.Logout(ctx, ""))
	})

	t.Run("logout everywhere", func(t *testing.T) {
		repo := newMemSessionRepo()
		m := newTestManager(t, repo, &fakeVerifier{principal: principal, password: "pass"})

		first, err := m.Login(ctx, "marta", "pass")
		require.NoError(t, err)
		second, err := m.Login(ctx, "marta", "pass")
		require.NoError(t, err)

		err = m.LogoutAll(ctx, principal.UserID)

		require.NoError(t, err)
		_, err = m.Refresh(ctx, first.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
		_, err = m.Refresh(ctx, second.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
	})
}

func TestSessionManager_Authorize(t *testing.T) {
	ctx := context.Background()
	principal := models.Principal{
		UserID:   uuid.New(),
		Username: "marta",
		Roles:    []string{models.RoleAdmin, models.RoleUser},
	}

	m := newTestManager(t, newMemSessionRepo(), &fakeVerifier{principal: principal, password: "pass"})
	pair, err := m.Login(ctx, "marta", "pass")
	require.NoError(t, err)

	t.Run("valid access token", func(t *testing.T) {
		got, err := m.Authorize(ctx, pair.Access.Value)

		require.NoError(t, err)
		require.Equal(t, principal, got)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := m.Authorize(ctx, pair.Refresh.Value)

		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Authorize(ctx, "garbage")

		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
