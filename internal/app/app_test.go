package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/auth"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	logger := log.WithField("test", "bootstrap")
	store := memory.NewStore()
	authSvc := auth.NewService(store.Users(), memory.NewSessionStore())

	cfg := DefaultConfig()
	require.NoError(t, bootstrapAdmin(ctx, authSvc, cfg, logger), "без email bootstrap пропускается")

	cfg.BootstrapAdminEmail = "root@example.com"
	cfg.BootstrapAdminPassword = "short"
	require.Error(t, bootstrapAdmin(ctx, authSvc, cfg, logger))

	cfg.BootstrapAdminPassword = "root-password"
	require.NoError(t, bootstrapAdmin(ctx, authSvc, cfg, logger))
	// Повторный запуск не создаёт дубликат.
	require.NoError(t, bootstrapAdmin(ctx, authSvc, cfg, logger))

	user, err := store.Users().GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, user.Role)

	res, err := authSvc.Login(ctx, "root@example.com", "root-password")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, res.User.Role)
}

type stubOutboxRepo struct {
	domain.OutboxRepository
	pending int
}

func (s stubOutboxRepo) Stats(context.Context) (domain.OutboxStats, error) {
	return domain.OutboxStats{PendingCount: s.pending}, nil
}

func TestOutboxBacklogChecker(t *testing.T) {
	healthy := newOutboxBacklogChecker(stubOutboxRepo{pending: 10}, 10).Check(context.Background())
	require.Equal(t, healthcheck.StatusHealthy, healthy.Status)

	overloaded := newOutboxBacklogChecker(stubOutboxRepo{pending: 11}, 10).Check(context.Background())
	require.Equal(t, healthcheck.StatusUnhealthy, overloaded.Status)
	require.Contains(t, overloaded.Message, "exceeds limit")
}

func TestNewHealthHandler_RegistersOutboxChecker(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: StorageDriverMemory}, log.WithField("test", "health"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	response := newHealthHandler(deps, cfg).Evaluate(context.Background())
	require.Equal(t, healthcheck.StatusHealthy, response.Status)
	require.Contains(t, response.Checks, "outbox")
	require.NotContains(t, response.Checks, "storage", "memory storage registers no ping")

	cfg.OutboxMaxPending = 0
	response = newHealthHandler(deps, cfg).Evaluate(context.Background())
	require.Empty(t, response.Checks)
}

func TestStartAndShutdownWorker(t *testing.T) {
	logger := log.WithField("test", "worker")

	started := make(chan struct{})
	cancel, done := startWorker(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	shutdownWorker(cancel, done, "test", logger)
	select {
	case <-done:
	default:
		t.Fatal("worker should be stopped after shutdownWorker")
	}

	// nil-аргументы не должны паниковать
	shutdownWorker(nil, nil, "noop", logger)
}

func TestNewGRPCServer_RegistersHealth(t *testing.T) {
	server, healthServer := newGRPCServer(log.WithField("test", "grpc"))
	require.NotNil(t, server)
	require.NotNil(t, healthServer)

	info := server.GetServiceInfo()
	require.Contains(t, info, "grpc.health.v1.Health")
	server.Stop()

	// Повторная регистрация метрик не паникует.
	again, _ := newGRPCServer(log.WithField("test", "grpc-again"))
	again.Stop()
}
