package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelplatform/reelauth/internal/testutil"
	"github.com/reelplatform/reelauth/tests/integration"
)

const (
	AccountsURL = "/api/accounts"
	LoginURL    = "/api/login"
	RefreshURL  = "/api/accessToken"
	LogoutURL   = "/api/logout"
	MeURL       = "/api/me"
)

// client with a cookie jar, the way a browser holds the refresh cookie
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, data string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp, string(body)
}

func accessTokenOf(t *testing.T, body string) string {
	t.Helper()
	var parsed struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	require.NotEmpty(t, parsed.AccessToken, "access token should not be empty")
	return parsed.AccessToken
}

func Test_SessionLifecycle(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("full journey", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, _ integration.Services) {
			client := newClient(t)

			// Register
			resp, body := postJSON(t, client, srvURL+AccountsURL, `{"username": "marta", "password": "StrongEnoughPassword"}`)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			// Login: access token in the body, refresh token in the jar
			resp, body = postJSON(t, client, srvURL+LoginURL, `{"username": "marta", "password": "StrongEnoughPassword"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			access := accessTokenOf(t, body)

			srv, err := url.Parse(srvURL)
			require.NoError(t, err)
			require.NotEmpty(t, client.Jar.Cookies(&url.URL{Scheme: srv.Scheme, Host: srv.Host, Path: "/api"}), "refresh cookie should be in the jar")

			// The access token opens protected endpoints
			req, err := http.NewRequest(http.MethodGet, srvURL+MeURL, nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+access)
			meResp, err := client.Do(req)
			require.NoError(t, err)
			meBody, err := io.ReadAll(meResp.Body)
			require.NoError(t, err)
			_ = meResp.Body.Close()
			require.Equalf(t, http.StatusOK, meResp.StatusCode, "not expected code. Body: %s", string(meBody))
			require.Contains(t, string(meBody), "marta")

			// Silent refresh: jar sends the cookie, both tokens rotate
			resp, body = postJSON(t, client, srvURL+RefreshURL, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			refreshed := accessTokenOf(t, body)
			require.NotEqual(t, access, refreshed, "access token should rotate on refresh")

			// Logout ends the session
			resp, body = postJSON(t, client, srvURL+LogoutURL, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			// The jar cookie was cleared, refresh has nothing to present
			resp, _ = postJSON(t, client, srvURL+RefreshURL, "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "logged out session must not refresh")
		})
	})

	t.Run("stolen refresh token dies with rotation", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			_, err := s.UserService.Register(t.Context(), "marta", "StrongEnoughPassword")
			require.NoError(t, err)

			client := newClient(t)
			resp, body := postJSON(t, client, srvURL+LoginURL, `{"username": "marta", "password": "StrongEnoughPassword"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			// An attacker copied the refresh cookie before the owner refreshed
			var stolen *http.Cookie
			for _, c := range resp.Cookies() {
				if c.Name == "RefreshToken" {
					stolen = c
				}
			}
			require.NotNil(t, stolen)

			// Owner refreshes, the stolen token is superseded
			resp, body = postJSON(t, client, srvURL+RefreshURL, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			req, err := http.NewRequest(http.MethodPost, srvURL+RefreshURL, nil)
			require.NoError(t, err)
			req.AddCookie(stolen)
			attack, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			_ = attack.Body.Close()

			require.Equal(t, http.StatusUnauthorized, attack.StatusCode, "superseded token must be dead")
		})
	})

	t.Run("seeded admin logs in", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			require.NoError(t, s.UserService.SeedAdmin(t.Context(), "AdminPassword123"))

			client := newClient(t)
			resp, body := postJSON(t, client, srvURL+LoginURL, `{"username": "admin", "password": "AdminPassword123"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			access := accessTokenOf(t, body)

			req, err := http.NewRequest(http.MethodGet, srvURL+MeURL, nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+access)
			meResp, err := client.Do(req)
			require.NoError(t, err)
			meBody, err := io.ReadAll(meResp.Body)
			require.NoError(t, err)
			_ = meResp.Body.Close()

			require.Equalf(t, http.StatusOK, meResp.StatusCode, "not expected code. Body: %s", string(meBody))
			require.Contains(t, string(meBody), `"admin"`, "seeded account should carry the admin role")
		})
	})
}
