package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/swaplane/offersvc/internal/core/config"
	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/httpapi"
	"github.com/swaplane/offersvc/internal/infra/natsstan"
	redisclient "github.com/swaplane/offersvc/internal/infra/redis"
	"github.com/swaplane/offersvc/internal/infra/remote"
	"github.com/swaplane/offersvc/internal/infra/resilience"
	"github.com/swaplane/offersvc/internal/infra/storage"
	"github.com/swaplane/offersvc/internal/infra/storage/memory"
	"github.com/swaplane/offersvc/internal/infra/storage/postgres"
	"github.com/swaplane/offersvc/internal/notify"
	"github.com/swaplane/offersvc/internal/offers"
)

// Options selects which parts of the process to run. The API binary runs
// both; the notifier binary runs only the consumer.
type Options struct {
	RunAPI      bool
	RunConsumer bool
	MigrateDir  string
}

// App owns the process lifecycle: storage, broker, orchestrator, HTTP
// surface and the background notification consumer.
type App struct {
	cfg  *config.AppConfig
	opts Options
	log  *slog.Logger

	db          *postgres.DB
	redisClient *redisclient.Client
	publisher   *natsstan.Publisher
	sub         domain.Subscription
	consumer    *notify.Consumer
	api         *httpapi.Server
}

// New wires the application from config.
func New(cfg *config.AppConfig, opts Options) (*App, error) {
	log := slog.Default()
	app := &App{cfg: cfg, opts: opts, log: log}

	// 1. Storage
	var offerRepo storage.OfferRepository
	var notificationRepo storage.NotificationRepository

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		migrateDir := opts.MigrateDir
		if migrateDir == "" {
			migrateDir = "migrations"
		}
		if err := db.Migrate(migrateDir); err != nil {
			return nil, err
		}
		app.db = db
		offerRepo = postgres.NewOfferRepo(db)
		notificationRepo = postgres.NewNotificationRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		offerRepo = memory.NewOfferRepo(store)
		notificationRepo = memory.NewNotificationRepo(store)
		log.Info("Using Memory storage")
	}

	// 2. Redis (optional consumer-side dedup)
	var dedup notify.Deduper
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisClient = rc
		dedup = rc
		log.Info("Notification dedup enabled")
	}

	// 3. Resilient remote clients
	resilientClient := remote.NewClient(
		remote.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout),
		remote.NewChatClient(cfg.Chat.BaseURL, cfg.Chat.Timeout),
		remote.Config{
			Breaker: resilience.BreakerConfig{
				FailMax:      cfg.Resilience.FailMax,
				ResetTimeout: cfg.Resilience.ResetTimeout,
			},
			Retry: resilience.RetryConfig{
				MaxAttempts: cfg.Resilience.MaxAttempts,
				BaseDelay:   cfg.Resilience.BaseDelay,
				MaxDelay:    cfg.Resilience.MaxDelay,
			},
		},
		log,
	)

	// 4. Broker publisher (lazy connect; a down broker must not block startup)
	app.publisher = natsstan.NewPublisher(cfg.Broker, log)

	// 5. Orchestrator
	svc := offers.NewService(offerRepo, resilientClient, resilientClient,
		app.publisher, cfg.Orchestrator, log)

	// 6. Background consumer
	if opts.RunConsumer {
		sub, err := natsstan.Open(cfg.Broker, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open broker subscription: %w", err)
		}
		app.sub = sub
		app.consumer = notify.NewConsumer(sub, notificationRepo, dedup, log)
	}

	// 7. HTTP surface
	if opts.RunAPI {
		var pinger httpapi.Pinger
		if app.db != nil {
			pinger = app.db
		}
		app.api = httpapi.NewServer(cfg.Server.Port, svc, notificationRepo,
			resilientClient, pinger, log)
	}

	return app, nil
}

// Start launches the consumer loop and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if a.consumer != nil {
		a.consumer.Start()
		a.log.Info("Notification consumer started")
	}
	if a.api != nil {
		go func() {
			if err := a.api.Start(); err != nil {
				a.log.Error("HTTP server failed", "error", err)
			}
		}()
		a.log.Info("HTTP server started", "port", a.cfg.Server.Port)
	}
	return nil
}

// Stop shuts everything down in dependency order: stop taking requests,
// drain the in-flight message, then close connections.
func (a *App) Stop(ctx context.Context) error {
	if a.api != nil {
		if err := a.api.Stop(ctx); err != nil {
			a.log.Warn("HTTP server shutdown", "error", err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("Consumer did not drain in time", "error", err)
		}
	}
	if a.sub != nil {
		if err := a.sub.Close(); err != nil {
			a.log.Warn("Closing subscription", "error", err)
		}
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("Closing publisher", "error", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Closing redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Closing database", "error", err)
		}
	}
	return nil
}
