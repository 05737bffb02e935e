// Package app assembles repositories and services from configuration. Both the HTTP
// gateway and the operator CLI build their object graph through Build.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/repository"
	"github.com/noah-isme/crewsync-api/internal/service"
	"github.com/noah-isme/crewsync-api/pkg/cache"
	"github.com/noah-isme/crewsync-api/pkg/config"
	"github.com/noah-isme/crewsync-api/pkg/database"
	"github.com/noah-isme/crewsync-api/pkg/jobs"
)

// ReconcileQueueName names the background cleanup queue.
const ReconcileQueueName = "reconcile"

// Container holds the long-lived dependencies of a process.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	Metrics     *service.MetricsService
	Audit       *repository.AuditRepository
	Directory   *service.DirectoryService
	Assignments *service.AssignmentService
	Events      *service.EventService
	Stats       *service.StatsService
	Access      *service.AccessService
	Auth        *service.AuthService
	Worker      *service.ReconcileWorker
	Queue       *jobs.Queue
}

// Build connects to the configured stores and wires every service. Redis is optional:
// when it cannot be reached the directory and stats caches are disabled.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.DB = db

	var cacheRepo service.CacheRepository
	if rdb, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		c.Redis = rdb
		cacheRepo = repository.NewCacheRepository(rdb, logger)
	}
	directoryCache := service.NewCacheService(cacheRepo, c.Metrics, cfg.Directory.CacheTTL, logger, cacheRepo != nil && cfg.Directory.CacheEnabled)
	statsCache := service.NewCacheService(cacheRepo, c.Metrics, cfg.Stats.CacheTTL, logger, cacheRepo != nil && cfg.Stats.Enabled)

	store, counter, err := c.relationStore(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}

	eventRepo := repository.NewEventRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	userRepo := repository.NewUserRepository(db)
	validate := validator.New()

	c.Audit = repository.NewAuditRepository(db)
	c.Directory = service.NewDirectoryService(eventRepo, shiftRepo, userRepo, directoryCache, cfg.Directory.CacheTTL, logger)
	instrumented, counter := instrumentStores(store, counter, c.Metrics)
	c.Assignments = service.NewAssignmentService(
		c.Directory,
		instrumented,
		eventRepo,
		c.Metrics,
		service.AssignmentConfig{ImplicitJoin: cfg.Assignments.ImplicitJoin},
		logger.Named("assignments"),
	)
	c.Events = service.NewEventService(eventRepo, shiftRepo, c.Directory, validate, logger.Named("events"))
	c.Stats = service.NewStatsService(service.StatsServiceParams{
		Directory:   c.Directory,
		Assignments: instrumented,
		Counter:     counter,
		Repo:        repository.NewStatsRepository(db),
		Metrics:     c.Metrics,
		Cache:       statsCache,
		CacheTTL:    cfg.Stats.CacheTTL,
		Logger:      logger.Named("stats"),
	})
	c.Access = service.NewAccessService(c.Directory, logger)
	c.Auth = service.NewAuthService(logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	c.Worker = service.NewReconcileWorker(c.Assignments, logger.Named("reconcile"))
	c.Queue = jobs.NewQueue(ReconcileQueueName, c.Worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reconcile.Workers,
		BufferSize: cfg.Reconcile.BufferSize,
		MaxRetries: cfg.Reconcile.MaxRetries,
		RetryDelay: cfg.Reconcile.RetryDelay,
		Logger:     logger,
	})
	c.Worker.Attach(c.Queue)
	c.Assignments.SetScheduler(c.Worker)

	return c, nil
}

// instrumentStores wraps the relation store and its status counter so every caller,
// the stats service included, records query timings.
func instrumentStores(store service.RelationStore, counter service.StatusCounter, metrics *service.MetricsService) (service.RelationStore, service.StatusCounter) {
	return service.InstrumentStore(store, metrics), service.InstrumentCounter(counter, metrics)
}

func (c *Container) relationStore(ctx context.Context) (service.RelationStore, service.StatusCounter, error) {
	switch c.Config.Assignments.StoreDriver {
	case config.StoreDriverMongo:
		client, err := database.NewMongo(ctx, c.Config.Mongo)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.Mongo = client
		repo := repository.NewAssignmentDocumentRepository(client.Database(c.Config.Mongo.Database), c.Config.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx, c.Config.Mongo.UniqueJoin); err != nil {
			return nil, nil, fmt.Errorf("ensure assignment indexes: %w", err)
		}
		c.Logger.Info("assignment store ready", zap.String("driver", config.StoreDriverMongo), zap.Bool("unique_join", c.Config.Mongo.UniqueJoin))
		return repo, repo, nil
	case config.StoreDriverPostgres, "":
		repo := repository.NewAssignmentRepository(c.DB)
		c.Logger.Info("assignment store ready", zap.String("driver", config.StoreDriverPostgres))
		return repo, repo, nil
	default:
		return nil, nil, fmt.Errorf("unknown assignment store driver %q", c.Config.Assignments.StoreDriver)
	}
}

// ReadinessChecks reports the stores a request may touch.
func (c *Container) ReadinessChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"postgres": c.DB.PingContext,
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	if c.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return c.Mongo.Ping(ctx, nil) }
	}
	return checks
}

// Close releases connections. The queue is stopped by whoever started it.
func (c *Container) Close(ctx context.Context) {
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			c.Logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("postgres close failed", zap.Error(err))
		}
	}
}
