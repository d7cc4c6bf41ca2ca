package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelplatform/reelauth/internal/testutil"
)

func Test_NewServerApp(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	dsn := pg.Pool.Config().ConnString()

	t.Run("builds and serves in production mode", func(t *testing.T) {
		cfg := NewConfig()
		cfg.DatabaseDSN = dsn
		cfg.SecretKey = "test-secret"
		cfg.AdminPassword = "AdminPassword123"

		app, err := NewServerApp(t.Context(), cfg)

		require.NoError(t, err, "app should be assembled with default (prod) config")
		require.NotNil(t, app.Handler)
		require.Equal(t, cfg.ListenAddr, app.ListenAddr)

		// The assembled handler answers requests end to end
		srv := httptest.NewServer(app.Handler)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/api/login", "application/json", nil)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty login body should be a decode error")
	})

	t.Run("fails on unknown environment", func(t *testing.T) {
		cfg := NewConfig()
		cfg.DatabaseDSN = dsn
		cfg.SecretKey = "test-secret"
		cfg.Environment = "staging"

		_, err := NewServerApp(t.Context(), cfg)

		require.Error(t, err, "unknown environment should not assemble")
	})

	t.Run("fails without secret key", func(t *testing.T) {
		cfg := NewConfig()
		cfg.DatabaseDSN = dsn

		_, err := NewServerApp(t.Context(), cfg)

		require.Error(t, err, "missing secret key should not assemble")
	})
}
