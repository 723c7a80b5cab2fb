package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/api/handler"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/config"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/mail"
	"github.com/pizza-nz/shiftreport-service/internal/metrics"
	"github.com/pizza-nz/shiftreport-service/internal/router"
	"github.com/pizza-nz/shiftreport-service/internal/service"
	"github.com/pizza-nz/shiftreport-service/internal/websockets"
	"github.com/pizza-nz/shiftreport-service/internal/worker"
)

func setupLogger(cfg config.Log) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	// Run database migrations
	if err := database.Migrate(cfg.Database, cfg.Database.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	repos := repository.NewRepositories(database)
	m := metrics.New()

	// Authorization
	grants := authz.NewGrantStore(repos.RolePermission)
	engine := authz.NewEngine(repos.Location, repos.Membership, grants, authz.Options{
		LegacyRoleFallback:   cfg.Authz.LegacyRoleFallback,
		MaxLocationsPerOwner: cfg.Authz.MaxLocationsPerOwner,
	})
	engine.Observe(m.ObserveDecision)
	if cfg.Authz.LegacyRoleFallback {
		log.Warn().Msg("legacy role fallback is enabled; users.role is consulted when no membership exists")
	}

	// Outbound email: through the Redis queue when configured, inline otherwise
	sender := mail.NewSMTPSender(cfg.SMTP)
	var pool *worker.Pool
	var dispatcher *mail.Dispatcher
	if cfg.Redis.URL != "" {
		rdb, err := worker.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()

		queue := worker.NewQueue(rdb, worker.QueueEmail)
		dispatcher = mail.NewDispatcher(sender, queue)

		pool = worker.NewPool(queue, cfg.Redis.Workers)
		pool.Handle(mail.JobType, dispatcher.Handle)
		pool.Observe(m.ObserveJob)
		pool.Start(ctx)
		log.Info().Int("workers", cfg.Redis.Workers).Msg("email queue started")
	} else {
		dispatcher = mail.NewDispatcher(sender, nil)
		log.Info().Msg("no redis configured; email is sent inline")
	}

	// Initialize WebSocket hub
	hub := websockets.NewHub(m)
	go hub.Run(ctx)

	// Services
	authService := service.NewAuthService(repos, service.JWTConfig{
		Secret:    cfg.JWT.Secret,
		ExpiresIn: cfg.JWT.ExpiresIn,
	})
	locationService := service.NewLocationService(repos, engine, grants)
	membershipService := service.NewMembershipService(repos, engine, hub)
	permissionService := service.NewPermissionService(repos, engine, grants)
	reportService := service.NewReportService(repos, engine, hub)
	invitationService := service.NewInvitationService(repos, engine, dispatcher, hub, service.InvitationConfig{
		TTL:       time.Duration(cfg.Invitations.TTLDays) * 24 * time.Hour,
		AcceptURL: cfg.Invitations.AcceptURL,
	})

	// Initialize router
	r := router.New(router.Handlers{
		Users:       handler.NewUserHandler(authService, membershipService),
		Locations:   handler.NewLocationHandler(locationService, membershipService),
		Permissions: handler.NewPermissionHandler(permissionService),
		Reports:     handler.NewReportHandler(reportService),
		Invitations: handler.NewInvitationHandler(invitationService),
		WebSocket: handler.NewWebSocketHandler(hub, authService, engine,
			websockets.NewUpgrader(cfg.Server.AllowedOrigins)),
		Health: database.HealthCheck,
	}, authService, m)

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Address).Str("mode", cfg.Server.Mode).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if pool != nil {
		pool.Wait()
	}
	dispatcher.Wait()

	log.Info().Msg("server exited properly")
}
