package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/handlers/middleware"
	"github.com/reelplatform/reelauth/internal/logger"
	"github.com/reelplatform/reelauth/internal/models"
)

type authService interface {
	// Login with username and password.
	// Any credential failure is apperrors.ErrInvalidCredentials
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh rotates the session behind the refresh token.
	// Denials are apperrors.ErrInvalidToken or apperrors.ErrSessionInvalid
	Refresh(ctx context.Context, rawRefresh string) (models.TokenPair, error)

	// Logout revokes the session, idempotent
	Logout(ctx context.Context, rawRefresh string) error

	// LogoutAll revokes every session of the user
	LogoutAll(ctx context.Context, userID uuid.UUID) error

	// Authorize verifies an access token and returns its principal
	Authorize(ctx context.Context, rawAccess string) (models.Principal, error)
}

type userService interface {
	// Register a new user
	// Has to return apperrors.ErrUserAlreadyExists if the name is taken
	Register(ctx context.Context, username string, password string) (models.User, error)
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth authService,
	users userService,
	cookieSecure bool,
	l logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(auth)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /accounts", handleRegister(users, l))
	api.Handle("POST /login", handleLogin(auth, cookieSecure, l))
	api.Handle("POST /accessToken", handleRefresh(auth, cookieSecure, l))
	api.Handle("POST /logout", handleLogout(auth, cookieSecure, l))

	api.Handle("POST /logout/all", withAuth(handleLogoutAll(auth, cookieSecure, l)))
	api.Handle("GET /me", withAuth(handleMe()))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return chain(root,
		middleware.LoggerMiddleware(l),
	)
}
