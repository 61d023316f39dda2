package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies — хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	store           domain.Store
	idempotencyRepo domain.IdempotencyRepository
	sessions        domain.SessionStore

	storageChecker healthcheck.Checker
	sessionChecker healthcheck.Checker

	closeFn func() error
}

// initRuntimeDependencies открывает хранилище данных и хранилище сессий.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := initSessions(ctx, cfg, deps, logger); err != nil {
		if deps.closeFn != nil {
			_ = deps.closeFn()
		}
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.StorageDriver))))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			store:           memory.NewStore(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		logger.Info("using postgres storage")
		return &runtimeDependencies{
			store:           store,
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("postgres", 0, store.Ping),
			closeFn:         store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initSessions(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		deps.sessions = memory.NewSessionStore()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	sessions := redisstore.NewSessionStore(client)
	if err := sessions.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	logger.WithField("addr", addr).Info("using redis session store")
	deps.sessions = sessions
	deps.sessionChecker = healthcheck.NewPingChecker("redis", 0, sessions.Ping)

	storageClose := deps.closeFn
	deps.closeFn = func() error {
		err := client.Close()
		if storageClose != nil {
			err = errors.Join(err, storageClose())
		}
		return err
	}
	return nil
}
