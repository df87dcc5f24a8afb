package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	backend "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/imhighyat/book-swap-api/internal/config"
	"github.com/imhighyat/book-swap-api/internal/events"
	"github.com/imhighyat/book-swap-api/internal/platform/googlebooks"
	"github.com/imhighyat/book-swap-api/internal/platform/memory"
	"github.com/imhighyat/book-swap-api/internal/platform/metrics"
	"github.com/imhighyat/book-swap-api/internal/platform/postgres"
	"github.com/imhighyat/book-swap-api/internal/platform/redis"
	"github.com/imhighyat/book-swap-api/internal/service"
	"github.com/imhighyat/book-swap-api/internal/service/auth"
	"github.com/imhighyat/book-swap-api/internal/store"
	"github.com/imhighyat/book-swap-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger  *slog.Logger
	db      *sql.DB
	redis   *backend.Client
	metrics *metrics.Metrics

	// Stores
	userStore    store.UserStore
	bookStore    store.BookStore
	libraryStore store.LibraryStore
	requestStore store.RequestStore

	// Service interfaces
	userService      service.UserService
	libraryService   service.LibraryService
	requestService   service.RequestService
	catalogService   service.CatalogService
	reconcileService service.ReconcileService

	// Event system
	eventEmitter *events.InMemoryEventEmitter

	// Background jobs
	scheduler *task.Scheduler
}

// storeSet groups the four stores of one storage backend.
type storeSet struct {
	users    store.UserStore
	books    store.BookStore
	library  store.LibraryStore
	requests store.RequestStore
}

// newApplication creates a new application instance with all dependencies initialized.
// Background jobs are registered but not started; Run starts them.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	stores, err := app.setupStores(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.userStore = stores.users
	app.bookStore = stores.books
	app.libraryStore = stores.library
	app.requestStore = stores.requests

	// Redis backs the catalog cache and the library lock when configured
	var (
		locker service.Locker = service.NewKeyedMutex()
		cache  service.Cache
	)
	if cfg.Redis.Addr != "" {
		app.redis, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = redis.NewLocker(app.redis, cfg.Redis.LockTTL)
		if cfg.Redis.CacheTTL > 0 {
			cache = redis.NewCache(app.redis, "catalog:", cfg.Redis.CacheTTL)
		}
		logger.Info("Redis connection established", slog.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("Redis not configured; using in-process locks and no catalog cache")
	}

	provider, err := googlebooks.NewClient(cfg.Catalog, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize catalog provider: %w", err)
	}

	// Initialize event emitter
	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewMetricsHandler(app.metrics))
	app.eventEmitter.RegisterHandler(events.NewAuditLogHandler(logger))

	if err := app.setupServices(provider, locker, cache); err != nil {
		app.cleanup()
		return nil, err
	}

	app.scheduler = task.NewScheduler(logger)
	if cfg.Reconcile.Enabled {
		job := task.JobFunc{
			JobName: "reconcile",
			Fn: func(ctx context.Context) error {
				_, err := app.reconcileService.Sweep(ctx)
				return err
			},
		}
		if err := app.scheduler.Add(job, cfg.Reconcile.Interval); err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to schedule reconcile job: %w", err)
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupStores opens the configured storage backend.
func (app *application) setupStores(ctx context.Context) (storeSet, error) {
	switch app.config.Storage.Driver {
	case "memory":
		app.logger.Warn("Using in-memory storage; data is lost on restart")
		db := memory.NewDatabase()
		return storeSet{
			users:    memory.NewUserStore(db),
			books:    memory.NewBookStore(db),
			library:  memory.NewLibraryStore(db),
			requests: memory.NewRequestStore(db),
		}, nil
	case "postgres":
		db, err := openDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return storeSet{}, err
		}
		app.db = db
		return storeSet{
			users:    postgres.NewPostgresUserStore(db, app.logger),
			books:    postgres.NewPostgresBookStore(db, app.logger),
			library:  postgres.NewPostgresLibraryStore(db, app.logger),
			requests: postgres.NewPostgresRequestStore(db, app.logger),
		}, nil
	default:
		return storeSet{}, fmt.Errorf("unsupported storage driver %q", app.config.Storage.Driver)
	}
}

func (app *application) setupServices(provider catalog.Provider, locker service.Locker, cache service.Cache) error {
	var err error

	app.userService, err = service.NewUserService(
		app.userStore,
		auth.NewBcryptHasher(bcrypt.DefaultCost),
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}

	app.libraryService, err = service.NewLibraryService(app.userStore, app.bookStore, app.libraryStore, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create library service: %w", err)
	}

	deps := service.RequestDeps{
		Users:    app.userStore,
		Library:  app.libraryStore,
		Requests: app.requestStore,
		Locker:   locker,
		Events:   app.eventEmitter,
	}
	app.requestService, err = service.NewRequestService(deps, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create request service: %w", err)
	}

	app.reconcileService, err = service.NewReconcileService(
		deps,
		app.config.Reconcile.SettleGrace,
		app.metrics,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create reconcile service: %w", err)
	}

	opts := []service.CatalogOption{
		service.WithCatalogRecorder(app.metrics),
		service.WithPageSize(app.config.Catalog.PageSize),
	}
	if cache != nil {
		opts = append(opts, service.WithCache(cache))
	}
	app.catalogService, err = service.NewCatalogService(app.bookStore, provider, app.logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create catalog service: %w", err)
	}

	return nil
}

// Run starts background jobs and the HTTP server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start()

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("Application shutdown completed")
}
