// Package app assembles the backend from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/auth"
	"github.com/flexconvert/flexconvert/internal/cache/memory"
	rediscache "github.com/flexconvert/flexconvert/internal/cache/redis"
	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/handler"
	"github.com/flexconvert/flexconvert/internal/lock"
	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/repository"
	"github.com/flexconvert/flexconvert/internal/repository/postgres"
	"github.com/flexconvert/flexconvert/internal/repository/sqlite"
	"github.com/flexconvert/flexconvert/internal/service"
	"github.com/flexconvert/flexconvert/internal/storage"
	memstore "github.com/flexconvert/flexconvert/internal/storage/memory"
	s3store "github.com/flexconvert/flexconvert/internal/storage/s3"
)

// Migrator applies and reverts the embedded schema migrations.
type Migrator interface {
	Version(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Database is an open database with its repositories.
type Database struct {
	Repos    repository.Repositories
	Health   repository.DatabaseHealth
	Migrator Migrator
}

// OpenDatabase connects to the configured driver.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Database, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		return &Database{
			Repos: repository.Repositories{
				Share: sqlite.NewShareRepository(db),
				Usage: sqlite.NewUsageRepository(db),
			},
			Health:   db,
			Migrator: db,
		}, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Database{
			Repos: repository.Repositories{
				Share: postgres.NewShareRepository(db),
				Usage: postgres.NewUsageRepository(db),
			},
			Health:   db,
			Migrator: db,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Close closes the database.
func (d *Database) Close() error {
	return d.Health.Close()
}

// Backend holds every long-lived dependency of the API server.
type Backend struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	Database *Database
	Store    storage.ObjectStore
	Locker   lock.Locker
	Cache    repository.Cache

	ShareService     *service.ShareService
	AnalyticsService *service.AnalyticsService
	CleanupService   *service.CleanupService

	closers []func() error
}

// NewBackend opens the database, cache, lock and object store and builds the services.
func NewBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	db, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	b.Database = db
	b.closers = append(b.closers, db.Close)

	if err := db.Migrator.Migrate(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Locker = rediscache.NewDistributedLock(client)
		b.Cache = rediscache.NewCache(client)
	} else {
		b.Locker = lock.NewMemoryLocker()
		mc := memory.NewCache()
		b.closers = append(b.closers, func() error { mc.Stop(); return nil })
		b.Cache = mc
	}

	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory object storage; shared files are not persisted")
		b.Store = memstore.NewStore(fmt.Sprintf("http://%s/_storage", cfg.Server.Addr()))
	default:
		store, err := s3store.New(ctx, cfg.Storage, logger)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		b.Store = store
	}

	b.ShareService = service.NewShareService(db.Repos.Share, b.Store, b.Metrics, logger, service.ShareConfig{
		URLExpiry:       cfg.Sharing.URLExpiry,
		MaxFileSize:     cfg.Sharing.MaxFileSize,
		MaxConfigSize:   cfg.Sharing.MaxConfigSize,
		MaxExpiry:       cfg.Sharing.MaxExpiry,
		DefaultPageSize: cfg.Sharing.DefaultPageSize,
		MaxPageSize:     cfg.Sharing.MaxPageSize,
	})
	b.AnalyticsService = service.NewAnalyticsService(db.Repos.Usage, b.Cache, b.Metrics, logger, service.AnalyticsConfig{
		StatsCacheTTL: cfg.Analytics.StatsCacheTTL,
		MaxDays:       cfg.Analytics.MaxDays,
	})
	b.CleanupService = service.NewCleanupService(db.Repos.Share, b.Store, b.Locker, b.Metrics, logger, service.CleanupConfig{
		Enabled:   cfg.Cleanup.Enabled,
		Interval:  cfg.Cleanup.Interval,
		BatchSize: cfg.Cleanup.BatchSize,
		DryRun:    cfg.Cleanup.DryRun,
	})

	return b, nil
}

// Router builds the HTTP router for the backend.
func (b *Backend) Router() *handler.Router {
	return handler.NewRouter(handler.RouterConfig{
		ShareHandler:     handler.NewShareHandler(b.ShareService, b.Logger),
		AnalyticsHandler: handler.NewAnalyticsHandler(b.AnalyticsService, b.Logger),
		AdminHandler:     handler.NewAdminHandler(b.CleanupService, auth.Config{KeyHash: b.Config.Auth.AdminKeyHash}, b.Logger),
		Health:           b.Database.Health,
		Metrics:          b.Metrics,
		Logger:           b.Logger,
		MaxBodySize:      b.Config.Server.MaxBodySize,
	})
}

// Close releases resources in reverse order of acquisition.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
