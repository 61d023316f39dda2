package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/auth"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const serviceName = "storefront"

// Run поднимает REST API, gRPC health, метрики и фоновые воркеры
// и работает до отмены ctx или ошибки одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn == nil {
			return
		}
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: serviceName,
		Version:     version.GetVersion(),
		SampleRatio: cfg.TracingSampleRatio,
		Insecure:    cfg.TracingInsecure,
	}, logger.WithField("component", "tracing"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	authSvc := auth.NewService(
		deps.store.Users(),
		deps.sessions,
		auth.WithLogger(logger.WithField("component", "auth")),
		auth.WithSessionTTL(cfg.SessionTTL),
	)
	if err := bootstrapAdmin(ctx, authSvc, cfg, logger); err != nil {
		return err
	}

	ordersSvc := orders.NewService(
		deps.store,
		orders.WithLogger(logger.WithField("component", "orders")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithTracer(otel.Tracer("storefront/orders")),
	)
	catalogSvc := catalog.NewService(deps.store, logger.WithField("component", "catalog"))

	api := httpapi.NewHandler(ordersSvc, catalogSvc, authSvc,
		httpapi.WithLogger(logger.WithField("component", "http-api")),
		httpapi.WithHTTPMetrics(metrics.NewHTTPMetrics()),
		httpapi.WithIdempotency(deps.idempotencyRepo, cfg.IdempotencyTTL, metrics.NewIdempotencyMetrics()),
	)

	kafkaProducer, err := initKafkaProducerWithClientID(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil {
		logger.WithError(err).Warn("continuing without kafka")
	}
	defer closeKafka(kafkaProducer, logger)

	publisher, dlqPublisher := outboxPublishers(kafkaProducer, cfg.KafkaTopic, logger)
	outboxWorker := outbox.NewWorker(
		deps.store.Outbox(),
		publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	cancelOutbox, outboxDone := startWorker(ctx, outboxWorker.Run)
	defer shutdownWorker(cancelOutbox, outboxDone, "outbox worker", logger)

	cleanupWorker := idempotency.NewCleanupWorker(
		deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	cancelCleanup, cleanupDone := startWorker(ctx, cleanupWorker.Run)
	defer shutdownWorker(cancelCleanup, cleanupDone, "idempotency cleanup", logger)

	healthHandler := newHealthHandler(deps, cfg)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	grpcServer, grpcHealth := newGRPCServer(logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	apiSrv := startAPIServer(httpLis, api.Router(), logger, errCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		runErr = err
	}

	grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	return runErr
}

// bootstrapAdmin создаёт администратора из конфигурации, если email задан.
func bootstrapAdmin(ctx context.Context, authSvc *auth.Service, cfg Config, logger *log.Entry) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	if len(cfg.BootstrapAdminPassword) < domain.MinPasswordLength {
		return fmt.Errorf("bootstrap admin password must be at least %d characters", domain.MinPasswordLength)
	}

	admin, err := authSvc.EnsureAdmin(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.WithFields(log.Fields{
		"user_id": admin.ID,
		"email":   admin.Email,
	}).Info("bootstrap admin is ready")
	return nil
}

func newHealthHandler(deps *runtimeDependencies, cfg Config) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		handler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.sessionChecker != nil {
		handler.RegisterChecker("sessions", deps.sessionChecker)
	}
	if cfg.OutboxMaxPending > 0 {
		handler.RegisterChecker("outbox", newOutboxBacklogChecker(deps.store.Outbox(), cfg.OutboxMaxPending))
	}
	return handler
}

// newOutboxBacklogChecker помечает сервис неготовым, когда backlog outbox
// превышает maxPending: брокер недоступен дольше, чем допустимо.
func newOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) healthcheck.Checker {
	return healthcheck.NewPingChecker("outbox", 0, func(ctx context.Context) error {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.PendingCount > maxPending {
			return fmt.Errorf("outbox backlog %d exceeds limit %d", stats.PendingCount, maxPending)
		}
		return nil
	})
}

func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	// reflection нужен grpcurl
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)

	return server, healthServer
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startWorker запускает run в отдельной горутине со своим контекстом.
func startWorker(ctx context.Context, run func(context.Context)) (context.CancelFunc, <-chan struct{}) {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(workerCtx)
	}()
	return cancel, done
}

// shutdownWorker отменяет воркер и ждёт завершения не дольше shutdownTimeout.
func shutdownWorker(cancel context.CancelFunc, done <-chan struct{}, name string, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.WithField("worker", name).Warn("worker did not stop in time")
	}
}
