package main

import (
	"context"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	httptransport "github.com/spec-kit/repair-desk/internal/api/http"
	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/livesync"
	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/persistence"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/service"
	"github.com/spec-kit/repair-desk/internal/upload"
	"github.com/spec-kit/repair-desk/internal/worker"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	store := service.NewTicketStore(service.TicketStoreDependencies{
		Repo:              ticketRepository(cfg, pg),
		Feed:              changeFeed(cfg, pg, redis),
		Logger:            logger.Named("tickets"),
		IDCode:            cfg.Tickets.IDPrefix,
		MaxPhotos:         cfg.Tickets.MaxPhotos,
		CreateMaxAttempts: cfg.Store.CreateMaxAttempts,
		Origin:            cfg.App.InstanceID,
	})

	blobs, err := upload.NewLocalBlobStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to prepare storage", zap.Error(err))
	}
	pipeline := upload.NewPipeline(blobs, logger.Named("upload"), upload.PipelineConfig{
		MaxDimension: cfg.Storage.MaxDimension,
		MaxPixels:    cfg.Storage.MaxPixels,
		MaxAttempts:  cfg.Storage.UploadMaxAttempts,
		Backoff:      cfg.Storage.UploadBackoff(),
		OnResult:     metrics.RecordUpload,
	})
	attachments := service.NewAttachmentService(store, pipeline, logger.Named("attachments"))

	// The cache subscribes as the service itself, so it sees every ticket.
	cache := livesync.New(store, logger.Named("livesync"))
	cache.Open(ctx)
	defer cache.Close()

	reconnectInitial, reconnectMax := cfg.Feed.ReconnectBackoff()
	recoveryDone := worker.StartStreamRecovery(ctx, cache, retry.Policy{
		MaxAttempts:     math.MaxInt32,
		InitialInterval: reconnectInitial,
		MaxInterval:     reconnectMax,
	}, logger.Named("livesync"))

	notifications := service.NewNotificationService(store.Feed(), logger.Named("notifications"), cfg.Notification)
	workerDone := worker.StartNotificationWorker(ctx, notifications, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitMB * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"postgres": pg, "redis": redis}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, cache, metrics),
		Tickets:        handlers.NewTicketsHandler(cache, store, attachments, dto.NewValidator()),
		Stream:         handlers.NewStreamHandler(cache, logger.Named("stream"), 15*time.Second),
		Technicians:    handlers.NewTechniciansHandler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		FilesDir:       blobs.Root(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone
	<-recoveryDone
}

func ticketRepository(cfg *config.Config, pg *persistence.Postgres) repository.TicketRepository {
	if cfg.Store.Backend == config.BackendPostgres {
		return repository.NewTicketRepository(pg.PoolHandle())
	}
	return repository.NewMemoryTicketRepository()
}

func changeFeed(cfg *config.Config, pg *persistence.Postgres, redis *persistence.Redis) events.Feed {
	switch cfg.Feed.Backend {
	case config.BackendPostgres:
		return events.NewPostgresFeed(pg.PoolHandle(), cfg.Feed.Channel)
	case config.BackendRedis:
		return events.NewRedisFeed(redis.Client, cfg.Feed.Channel)
	default:
		return events.NewInMemoryFeed()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
