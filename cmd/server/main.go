// Package main is the entrypoint for the authgraph admin API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/authgraph/internal/api"
	"github.com/kiranshivaraju/authgraph/internal/api/handler"
	mw "github.com/kiranshivaraju/authgraph/internal/api/middleware"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/internal/cache"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/config"
	"github.com/kiranshivaraju/authgraph/internal/events"
	"github.com/kiranshivaraju/authgraph/internal/idp"
	"github.com/kiranshivaraju/authgraph/internal/lifecycle"
	"github.com/kiranshivaraju/authgraph/internal/rbac"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "idp_enabled", cfg.IdP.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Identity provider and notifications
	var provider idp.Provider = idp.Noop{}
	if cfg.IdP.Enabled() {
		provider = idp.NewKeycloakClient(idp.KeycloakConfig{
			BaseURL:      cfg.IdP.BaseURL,
			Realm:        cfg.IdP.Realm,
			ClientID:     cfg.IdP.ClientID,
			ClientSecret: cfg.IdP.ClientSecret,
			Timeout:      cfg.IdP.Timeout,
		})
		slog.Info("identity provider configured", "base_url", cfg.IdP.BaseURL, "realm", cfg.IdP.Realm)
	}
	publisher := events.NewRedisPublisher(redisCache.Client(), cfg.Events.Channel)

	// 6. Create store and services
	log := slog.Default()
	pgStore := store.NewPostgresStore(pool)
	repos := store.RepositoriesOf(pgStore)
	uow := pgStore.UnitOfWork()
	cacheManager := cache.NewManager(redisCache, cfg.Cache.UserRolesTTL, cfg.Cache.ConfigTTL, log)

	deps := lifecycle.Deps{
		Repos:      repos,
		UnitOfWork: uow,
		Engine:     cascade.NewEngine(log),
		Cache:      cacheManager,
		IdP:        provider,
		Publisher:  publisher,
		Logger:     log,
	}
	tenants := lifecycle.NewTenantService(deps)
	services := lifecycle.NewServiceService(deps)
	users := lifecycle.NewUserService(deps)
	authz := rbac.NewService(repos, uow, cacheManager, log)

	// 7. Build router with dependencies
	auth := mw.NewAuth(services)
	servicesHandler := handler.NewServices(services)
	servicesHandler.SecretRotated = auth.Forget

	router := api.NewRouter(api.Dependencies{
		Auth:          auth,
		HealthHandler: healthHandler(pgStore, redisCache),
		Metrics:       promhttp.Handler(),
		Tenants:       handler.NewTenants(tenants),
		Services:      servicesHandler,
		RBAC:          handler.NewRBAC(authz),
		Users:         handler.NewUsers(users),
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
