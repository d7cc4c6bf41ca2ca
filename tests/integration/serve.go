package integration

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/reelplatform/reelauth/internal/handlers"
	"github.com/reelplatform/reelauth/internal/logger"
	"github.com/reelplatform/reelauth/internal/repository/postgres"
	"github.com/reelplatform/reelauth/internal/service/auth"
	"github.com/reelplatform/reelauth/internal/service/auth/tokencodec"
	"github.com/reelplatform/reelauth/internal/service/user"
	"github.com/reelplatform/reelauth/internal/testutil"
)

type Services struct {
	SessionManager *auth.SessionManager
	UserService    *user.UserService
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The transaction is rolled back at test end, so the database stays clean
func RunTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		// Initialize repositories
		storage := postgres.NewStorage(tx)

		// Initialize services
		codec, err := tokencodec.New(tokencodec.Config{SecretKey: "test-secret"})
		require.NoError(t, err, "token codec should be created without errors")

		userService := user.NewService(user.DefaultHasher, storage.User())
		manager, err := auth.NewSessionManager(auth.Config{}, codec, storage.Session(), userService)
		require.NoError(t, err, "session manager should be created without errors")

		// Run http server with the full router in transaction
		router := handlers.NewRouter(manager, userService, false, logger.NewNoOp())
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{
			SessionManager: manager,
			UserService:    userService,
		})
	})
}
