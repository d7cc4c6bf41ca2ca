package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/reelplatform/reelauth/internal/db"
	"github.com/reelplatform/reelauth/internal/handlers"
	"github.com/reelplatform/reelauth/internal/logger"
	"github.com/reelplatform/reelauth/internal/repository"
	"github.com/reelplatform/reelauth/internal/repository/postgres"
	"github.com/reelplatform/reelauth/internal/repository/redis"
	"github.com/reelplatform/reelauth/internal/service/auth"
	"github.com/reelplatform/reelauth/internal/service/auth/tokencodec"
	"github.com/reelplatform/reelauth/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories. Users always live in Postgres, the session
	// store is Redis when an address is configured
	storage := postgres.NewStorage(pool)

	var sessions repository.SessionRepo = storage.Session()
	if c.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		sessions = redis.NewSessionRepo(rdb)
	}

	// Initialize services
	codec, err := tokencodec.New(tokencodec.Config{
		SecretKey: c.SecretKey,
		AccessTTL: c.AccessTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage.User())
	authService, err := auth.NewSessionManager(auth.Config{SessionTTL: c.SessionTTL}, codec, sessions, userService)
	if err != nil {
		return nil, fmt.Errorf("error while creating session manager. Err: %w", err)
	}

	if c.AdminPassword != "" {
		if err := userService.SeedAdmin(ctx, c.AdminPassword); err != nil {
			return nil, fmt.Errorf("error while seeding admin user. Err: %w", err)
		}
	}

	mux := handlers.NewRouter(
		authService,
		userService,
		c.Environment == logger.EnvProduction,
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
