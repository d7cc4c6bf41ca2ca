package handlers

import (
	"net/http"
	"time"

	"github.com/reelplatform/reelauth/internal/models"
)

// Refresh tokens travel in an HttpOnly cookie so scripts never see them.
// Access tokens travel in the response body, transport of both is a policy
// of this layer, not of the session core.
const refreshCookieName = "RefreshToken"

func setRefreshCookie(w http.ResponseWriter, token models.IssuedToken, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token.Value,
		Path:     "/api",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
