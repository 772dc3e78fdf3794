// Package app wires the certificate pipeline from configuration. The server, worker and CLI share it.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/config"
	"github.com/aura-seminar/certificates/internal/certificates"
	"github.com/aura-seminar/certificates/internal/emaillogs"
	"github.com/aura-seminar/certificates/internal/mailer"
	"github.com/aura-seminar/certificates/internal/registrations"
	"github.com/aura-seminar/certificates/internal/render"
	"github.com/aura-seminar/certificates/pkg/cache"
	"github.com/aura-seminar/certificates/pkg/database"
	"github.com/aura-seminar/certificates/pkg/queue"
	"github.com/aura-seminar/certificates/pkg/redis"
	"github.com/aura-seminar/certificates/pkg/storage"
)

// memoryCacheSize bounds the in-process existence cache.
const memoryCacheSize = 10000

// App holds the connections and components of one process.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client
	Store *storage.S3
	Queue *queue.Queue

	Registrations *registrations.Repository
	Artifacts     *certificates.Artifacts
	Generator     *certificates.Generator
	Scanner       *certificates.Scanner
}

// New connects to Postgres, Redis and S3 and builds the pipeline. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	var err error

	a.Pool, err = database.NewPostgresPool(ctx, cfg.Database.DSN(), 0, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, a.Pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.Redis, err = redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	a.Store, err = storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.Bucket,
		Endpoint:        cfg.AWS.Endpoint,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("s3: %w", err)
	}

	loc, err := cfg.Certificate.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	var existenceStore cache.Store = cache.NewRedis(a.Redis.Client, logger)
	if cfg.Certificate.CacheBackend == "memory" {
		existenceStore = cache.NewMemory(memoryCacheSize, cfg.Certificate.CacheTTL)
	}
	exists := certificates.NewExistenceCache(existenceStore, a.Store, cfg.Certificate.CacheTTL, logger)
	renderer := render.New(os.DirFS(cfg.Certificate.AssetsDir), render.Options{Location: loc})
	a.Artifacts = certificates.NewArtifacts(a.Store, exists, renderer, logger)

	a.Queue = queue.NewQueue(a.Redis.Client, queue.Options{
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  cfg.Worker.RetryDelay,
	}, logger)

	a.Registrations = registrations.NewRepository(a.Pool)
	sender := mailer.NewSMTP(mailer.SMTPConfig{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		Username:    cfg.Email.SMTPUser,
		Password:    cfg.Email.SMTPPass,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	}, logger)
	a.Generator = certificates.NewGenerator(
		a.Registrations,
		a.Artifacts,
		sender,
		emaillogs.NewRepository(a.Pool),
		redis.NewLocker(a.Redis.Client),
		certificates.GeneratorConfig{
			LockTTL:   cfg.Certificate.LockTTL,
			PublicURL: cfg.Server.PublicURL,
			Location:  loc,
		},
		logger,
	)
	a.Scanner = certificates.NewScanner(a.Registrations, a.Artifacts, a.Generator, a.Queue, logger)
	return a, nil
}

// Ping checks the database and Redis.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases connections opened by New.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
