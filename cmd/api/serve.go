package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/jobboard-api/internal/email"
	applicationHandler "github.com/jwalitptl/jobboard-api/internal/handler/application"
	"github.com/jwalitptl/jobboard-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/jobboard-api/internal/handler/notification"
	promHandler "github.com/jwalitptl/jobboard-api/internal/handler/prometheus"
	realtimeHandler "github.com/jwalitptl/jobboard-api/internal/handler/realtime"
	"github.com/jwalitptl/jobboard-api/internal/matching"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/realtime"
	"github.com/jwalitptl/jobboard-api/internal/repository"
	"github.com/jwalitptl/jobboard-api/internal/repository/cache"
	"github.com/jwalitptl/jobboard-api/internal/repository/postgres"
	"github.com/jwalitptl/jobboard-api/internal/router"
	applicationService "github.com/jwalitptl/jobboard-api/internal/service/application"
	notificationService "github.com/jwalitptl/jobboard-api/internal/service/notification"
	"github.com/jwalitptl/jobboard-api/internal/worker"
	"github.com/jwalitptl/jobboard-api/pkg/auth"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "create the database schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)
	if err := middleware.RegisterValidators(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.Metrics.Namespace, reg)

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := matching.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize repositories
	base := postgres.NewBaseRepository(db, m)
	var directory repository.DirectoryRepository = postgres.NewDirectoryRepository(base)
	if cfg.Cache.Enabled {
		directory = cache.NewDirectory(directory, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}

	// The registry is process-wide: every live connection of every user is
	// reachable only from the instance that accepted it.
	registry := realtime.NewRegistry(m.ActiveConnections)
	dispatcher := realtime.NewDispatcher(registry, m, l)

	// Initialize services
	notificationRepo := postgres.NewNotificationRepository(base)
	notifications := notificationService.NewService(notificationRepo, dispatcher, m, l)
	matchQueue := matching.NewRedisQueue(redisClient, matching.ConfigFrom(cfg.Matching), m)
	applications := applicationService.NewService(
		postgres.NewApplicationRepository(base),
		directory,
		notifications,
		matchQueue,
		email.NewService(cfg.Email),
		m,
		l,
	)

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	requests := promHandler.New(cfg.Metrics.Namespace, reg)
	checks := map[string]health.Pinger{
		"database": db,
		"redis": health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
		"matching": matchQueue,
	}
	clientOpts := realtime.ClientOptions{
		PushTimeout: cfg.Realtime.PushTimeout,
		SendBuffer:  cfg.Realtime.SendBuffer,
	}

	r := router.NewRouter(router.ConfigFrom(cfg), middleware.NewAuthMiddleware(tokens), router.Handlers{
		Health:        health.NewHandler(checks, requests.Handler()),
		Metrics:       requests,
		Applications:  applicationHandler.NewHandler(applications),
		Notifications: notificationHandler.NewHandler(notifications),
		Realtime:      realtimeHandler.NewHandler(tokens, registry, clientOpts, cfg.CORS.AllowedOrigins, l),
	}, l)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Retention.Enabled {
		go worker.NewRetentionWorker(notificationRepo, cfg.Retention, l).Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	l.Info().Msg("server exited properly")
	return nil
}
