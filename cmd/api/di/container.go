package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	"gorm.io/gorm"

	"mongo-user-service/cmd/api/infrastructure"
	"mongo-user-service/internal/adapter/cache"
	"mongo-user-service/internal/adapter/db/mongodb"
	"mongo-user-service/internal/adapter/db/postgres"
	ginhandler "mongo-user-service/internal/adapter/gin/handler"
	"mongo-user-service/internal/adapter/gin/middleware"
	grpcadapter "mongo-user-service/internal/adapter/grpc"
	"mongo-user-service/internal/adapter/repository/cached"
	"mongo-user-service/internal/config"
	"mongo-user-service/internal/usecase/user"
	redisclient "mongo-user-service/pkg/redis"
)

// userStore is a user store gateway that can prepare its schema and be
// probed for health.
type userStore interface {
	user.Repository
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Mongo         *mongo.Client
	DB            *gorm.DB
	RedisClient   *redisclient.Client
	UserUC        user.Usecase
	RateLimiter   *middleware.RateLimiter
	GinHandler    *ginhandler.UserHandler
	Health        *health.Server
	HealthChecker *grpcadapter.HealthChecker
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (_ *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}
	// Release whatever was opened if a later step fails
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	store, err := c.initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare user store: %w", err)
	}

	probes := map[string]grpcadapter.Pinger{"store": store}
	var repo user.Repository = store

	if cfg.Redis.Enabled {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		probes["redis"] = c.RedisClient

		if cfg.Redis.CacheEnabled {
			userCache := cache.NewRedisUserCache(
				c.RedisClient.Client,
				time.Duration(cfg.Redis.CacheTTL)*time.Second,
				l,
			)
			repo = cached.NewCachedUserRepository(store, userCache, l)
		}

		if cfg.RateLimit.Enabled {
			c.RateLimiter = middleware.NewRateLimiter(
				c.RedisClient.Client,
				middleware.RateLimiterConfig{
					RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
					BurstCapacity:     cfg.RateLimit.BurstCapacity,
				},
				l,
			)
		}
	}

	c.UserUC = user.New(repo, l)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)

	c.Health = health.NewServer()
	c.HealthChecker = grpcadapter.NewHealthChecker(
		c.Health,
		probes,
		time.Duration(cfg.App.HealthCheckIntervalSeconds)*time.Second,
		l,
	)

	return c, nil
}

func (c *Container) initStore(ctx context.Context) (userStore, error) {
	switch c.Config.Store.Driver {
	case config.DriverPostgres:
		db, err := infrastructure.NewDatabase(c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db
		return postgres.NewUserRepoPG(db, c.Logger), nil
	default:
		client, err := infrastructure.NewMongoClient(ctx, c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo: %w", err)
		}
		c.Mongo = client
		return mongodb.NewUserRepoMongo(infrastructure.UsersCollection(client, c.Config), c.Logger), nil
	}
}

// Close closes all resources held by the container
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.Mongo != nil {
		if err := infrastructure.CloseMongo(ctx, c.Mongo); err != nil {
			errs = append(errs, err)
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
