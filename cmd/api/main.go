package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-console/internal/api/http"
	"github.com/spec-kit/crm-console/internal/api/http/handlers"
	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/observability"
	"github.com/spec-kit/crm-console/internal/persistence"
	"github.com/spec-kit/crm-console/internal/service"
	"github.com/spec-kit/crm-console/internal/upstream"
	"github.com/spec-kit/crm-console/internal/worker"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

const tokenTTLMinutes = 60

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	checks := map[string]handlers.Pinger{}

	var backend localstate.Backend
	switch cfg.LocalState.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		backend = localstate.NewPostgresBackend(pg.PoolHandle())
		checks["postgres"] = pg
	case config.DriverRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		backend = localstate.NewRedisBackend(redis.Client)
		checks["redis"] = redis
	default:
		backend = localstate.NewMemoryBackend()
	}
	logger.Info("local state ready", zap.String("driver", cfg.LocalState.Driver))

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	client := upstream.New(cfg.Upstream, upstream.NewHTTPClient(cfg.Upstream), metrics, logger)
	roles := service.NewRoleRegistry(backend, dispatcher, logger)

	factory := &service.ShellFactory{
		Upstream:   client,
		Roles:      roles,
		LocalState: backend,
		Box:        sealbox.New(cfg.LocalState.Secret),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Team:       cfg.Team,
		Feeds:      cfg.Feeds,
	}
	sessions := service.NewSessionRegistry(factory.New, cfg.Session.IdleTTL, logger)
	defer sessions.Close()
	go sessions.RunJanitor(ctx, time.Minute)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Settings:       handlers.NewSettingsHandler(sessions),
		Team:           handlers.NewTeamHandler(sessions),
		Roles:          handlers.NewRolesHandler(sessions),
		Integrations:   handlers.NewIntegrationsHandler(sessions),
		Drafts:         handlers.NewDraftsHandler(service.NewDraftService(backend)),
		Feeds:          handlers.NewFeedsHandler(sessions),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
