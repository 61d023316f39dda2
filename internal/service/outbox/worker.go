// Package outbox доставляет события заказов (order.placed, order.cancelled,
// order.status_changed) из transactional outbox в брокер.
package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	// Пауза между попытками не растёт дальше, иначе одно событие задерживает весь батч.
	maxRetryDelay = 5 * time.Second
)

// WorkerOptions задаёт параметры доставки событий.
type WorkerOptions struct {
	Logger         *log.Entry
	Metrics        *metrics.OutboxMetrics
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithMetrics задаёт метрики доставки.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(opts *WorkerOptions) { opts.Metrics = m }
}

// WithDLQPublisher задаёт, куда уходят события, не доставленные за MaxAttempts попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

// WithPollInterval задаёт паузу между выборками из outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт число событий в одной выборке.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
// Ноль отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// Outcome — итог обработки одного события заказа.
type Outcome int

const (
	// OutcomeSent: брокер принял событие, запись помечена sent.
	OutcomeSent Outcome = iota
	// OutcomeFailed: попытки исчерпаны, запись помечена failed и скопирована в DLQ.
	OutcomeFailed
	// OutcomeAborted: ctx отменён, запись осталась pending до следующего запуска.
	OutcomeAborted
)

// BatchResult считает события одной выборки по итогам.
type BatchResult struct {
	Sent    int
	Failed  int
	Aborted int
}

// Worker публикует pending-события заказов. Порядок событий одного заказа
// сохраняется: выборка идёт по created_at, а ключ сообщения в брокере — id заказа.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlqPublisher domain.OutboxPublisher
	logger       *log.Entry
	metrics      *metrics.OutboxMetrics
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseDelay    time.Duration
}

// NewWorker создаёт воркер; нулевые параметры заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{RetryBaseDelay: defaultRetryBaseDelay}
	for _, option := range options {
		option(&opts)
	}

	w := &Worker{
		repo:         repo,
		publisher:    publisher,
		dlqPublisher: opts.DLQPublisher,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		maxAttempts:  opts.MaxAttempts,
		baseDelay:    max(opts.RetryBaseDelay, 0),
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewOutboxMetrics()
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	return w
}

// Run доставляет события сразу и затем раз в pollInterval, пока ctx не отменён.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("order event delivery disabled: outbox or publisher is not configured")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		result := w.ProcessOnce(ctx)
		if result.Sent > 0 || result.Failed > 0 {
			w.logger.WithFields(log.Fields{
				"sent":   result.Sent,
				"failed": result.Failed,
			}).Debug("order events delivered")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce выбирает до batchSize pending-событий и доставляет их по очереди.
// После отмены ctx оставшиеся события не трогаются.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}
	defer w.refreshBacklog(ctx)

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending order events")
		return result
	}

	for i, event := range events {
		outcome := OutcomeAborted
		if ctx.Err() == nil {
			outcome = w.deliver(ctx, event)
		}
		switch outcome {
		case OutcomeSent:
			result.Sent++
		case OutcomeFailed:
			result.Failed++
		case OutcomeAborted:
			result.Aborted = len(events) - i
			return result
		}
	}
	return result
}

// deliver публикует одно событие с повторами и фиксирует итог в outbox.
func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) Outcome {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"order_id":   event.AggregateID,
		"event_type": event.EventType,
	})

	attempts, err := w.publishWithRetry(ctx, event)
	if err == nil {
		if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
			// Событие уже в брокере; повторная доставка при следующем опросе допустима.
			entry.WithError(markErr).Warn("order event published but not marked sent")
		}
		return OutcomeSent
	}
	if ctx.Err() != nil {
		return OutcomeAborted
	}

	entry.WithError(err).WithField("attempts", attempts).Error("order event delivery failed")
	w.metrics.RecordPublish(metrics.PublishResultFailed)

	event.AttemptCount = attempts
	event.LastError = err.Error()
	if w.dlqPublisher != nil {
		if dlqErr := w.dlqPublisher.Publish(ctx, event); dlqErr != nil {
			entry.WithError(dlqErr).Warn("failed to copy order event to dlq")
			w.metrics.RecordPublish(metrics.PublishResultDLQFailed)
		}
	}
	if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
		entry.WithError(markErr).Warn("failed to mark order event failed")
	}
	return OutcomeFailed
}

// publishWithRetry возвращает число сделанных попыток и последнюю ошибку.
func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.publisher.Publish(ctx, event)
		if lastErr == nil {
			w.metrics.RecordPublish(metrics.PublishResultSent)
			return attempt, nil
		}
		w.metrics.RecordPublish(metrics.PublishResultRetryError)

		if attempt == w.maxAttempts {
			break
		}
		if delay := w.retryDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return w.maxAttempts, fmt.Errorf("publish %s after %d attempts: %w", event.EventType, w.maxAttempts, lastErr)
}

// retryDelay удваивает baseDelay с каждой попыткой, не превышая maxRetryDelay.
func (w *Worker) retryDelay(attempt int) time.Duration {
	if w.baseDelay <= 0 {
		return 0
	}
	delay := w.baseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = time.Since(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}
