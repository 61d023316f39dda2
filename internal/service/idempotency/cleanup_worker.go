package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Ключи Idempotency-Key запросов POST /api/orders живут IdempotencyTTL; после этого
// повтор запроса оформит новый заказ, а запись можно удалять.
const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// Не больше стольких DELETE за один тик: остаток уйдёт на следующем.
	defaultMaxBatchesPerRun = 20
)

// CleanupOptions задаёт параметры воркера очистки.
type CleanupOptions struct {
	Logger     *log.Entry
	Metrics    *metrics.IdempotencyMetrics
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
	Clock      func() time.Time
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) { opts.Logger = logger }
}

// WithMetrics задаёт метрики очистки.
func WithMetrics(m *metrics.IdempotencyMetrics) CleanupOption {
	return func(opts *CleanupOptions) { opts.Metrics = m }
}

// WithInterval задаёт паузу между запусками.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) { opts.Interval = interval }
}

// WithBatchSize задаёт число ключей, удаляемых одним запросом.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) { opts.BatchSize = batchSize }
}

// WithMaxBatches ограничивает число запросов удаления за один запуск.
func WithMaxBatches(n int) CleanupOption {
	return func(opts *CleanupOptions) { opts.MaxBatches = n }
}

// WithClock подменяет источник времени, от которого считается просрочка.
func WithClock(clock func() time.Time) CleanupOption {
	return func(opts *CleanupOptions) { opts.Clock = clock }
}

// CleanupWorker удаляет просроченные ключи идемпотентности оформления заказов.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	metrics    *metrics.IdempotencyMetrics
	interval   time.Duration
	batchSize  int
	maxBatches int
	now        func() time.Time
}

// NewCleanupWorker создаёт воркер; нулевые параметры заменяются значениями по умолчанию.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{}
	for _, option := range options {
		option(&opts)
	}

	w := &CleanupWorker{
		repo:       repo,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		maxBatches: opts.MaxBatches,
		now:        opts.Clock,
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewIdempotencyMetrics()
	}
	if w.interval <= 0 {
		w.interval = defaultCleanupInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultCleanupBatchSize
	}
	if w.maxBatches <= 0 {
		w.maxBatches = defaultMaxBatchesPerRun
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run чистит ключи сразу и затем раз в interval, пока ctx не отменён.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency repository is not configured, cleanup disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now().UTC())
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.metrics.RecordCleanupRun("error", deleted)
		w.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency cleanup failed")
	default:
		w.metrics.RecordCleanupRun("ok", deleted)
		if deleted > 0 {
			w.logger.WithField("deleted", deleted).Info("expired order request keys removed")
		}
	}
}

// DeleteExpired удаляет ключи с ttl <= before порциями batchSize, не больше maxBatches порций.
// Возвращает число удалённых ключей, в том числе при ошибке на очередной порции.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}

	total := 0
	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		w.metrics.AddDeleted(deleted)

		if deleted < w.batchSize {
			return total, nil
		}
	}

	w.logger.WithField("deleted", total).Debug("cleanup batch limit reached, continuing next run")
	return total, nil
}
