package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/handlers/render"
	"github.com/reelplatform/reelauth/internal/handlers/userctx"
	"github.com/reelplatform/reelauth/internal/logger"
)

func handleRegister(users userService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := users.Register(r.Context(), data.Username, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "User name already taken", http.StatusConflict)
			default:
				l.Error("registration failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSONWithStatus(w, response{ID: user.ID, Username: user.Username}, http.StatusCreated)
	})
}

func handleLogin(auth authService, cookieSecure bool, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			denyAuth(w, err, l)
			return
		}

		setRefreshCookie(w, pair.Refresh, cookieSecure)
		render.JSON(w, response{AccessToken: pair.Access.Value})
	})
}

func handleRefresh(auth authService, cookieSecure bool, l logger.Logger) http.Handler {
	type response struct {
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := refreshFromRequest(r)
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		pair, err := auth.Refresh(r.Context(), raw)
		if err != nil {
			denyAuth(w, err, l)
			return
		}

		setRefreshCookie(w, pair.Refresh, cookieSecure)
		render.JSON(w, response{AccessToken: pair.Access.Value})
	})
}

func handleLogout(auth authService, cookieSecure bool, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing or broken cookie means there is nothing to revoke,
		// logout succeeds either way
		if raw, ok := refreshFromRequest(r); ok {
			if err := auth.Logout(r.Context(), raw); err != nil {
				denyAuth(w, err, l)
				return
			}
		}

		clearRefreshCookie(w, cookieSecure)
		render.JSON(w, response{Message: "Logged out"})
	})
}

func handleLogoutAll(auth authService, cookieSecure bool, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := userctx.FromContext(r.Context())

		if err := auth.LogoutAll(r.Context(), principal.UserID); err != nil {
			denyAuth(w, err, l)
			return
		}

		clearRefreshCookie(w, cookieSecure)
		render.JSON(w, response{Message: "Logged out everywhere"})
	})
}

func handleMe() http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Roles    []string  `json:"roles"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{ID: principal.UserID, Username: principal.Username, Roles: principal.Roles})
	})
}

// denyAuth maps service errors onto the two outcomes the caller may see:
// an outage (503, retryable) or one uniform denial (401). Which check
// failed stays on the server, in the log.
func denyAuth(w http.ResponseWriter, err error, l logger.Logger) {
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		l.Error("session store unavailable", "error", err.Error())
		render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	l.Debug("authentication denied", "error", err.Error())
	render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
}
