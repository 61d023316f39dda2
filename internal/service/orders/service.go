package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultConflictRetries = 3
	defaultRetryBaseDelay  = 10 * time.Millisecond
)

// ServiceOptions задаёт параметры сервиса заказов.
type ServiceOptions struct {
	Logger          *log.Entry
	Metrics         *metrics.OrderMetrics
	Tracer          trace.Tracer
	Clock           func() time.Time
	IDGenerator     func() string
	ConflictRetries int
	RetryBaseDelay  time.Duration
}

// Option настраивает Service.
type Option func(*ServiceOptions)

// WithLogger задаёт logger для сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *ServiceOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики workflow. Без них метрики не пишутся.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *ServiceOptions) {
		opts.Metrics = m
	}
}

// WithTracer задаёт tracer для спанов операций.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *ServiceOptions) {
		opts.Tracer = tracer
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *ServiceOptions) {
		opts.Clock = clock
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(gen func() string) Option {
	return func(opts *ServiceOptions) {
		opts.IDGenerator = gen
	}
}

// WithConflictRetries задаёт число попыток транзакции при конкурентной записи.
func WithConflictRetries(retries int, baseDelay time.Duration) Option {
	return func(opts *ServiceOptions) {
		opts.ConflictRetries = retries
		opts.RetryBaseDelay = baseDelay
	}
}

// Service реализует workflow заказов: оформление, отмену, смену статуса и чтение.
// Собственных блокировок сервис не держит: изоляцию обеспечивает domain.Store.
type Service struct {
	store           domain.Store
	logger          *log.Entry
	metrics         *metrics.OrderMetrics
	tracer          trace.Tracer
	now             func() time.Time
	newID           func() string
	conflictRetries int
	retryBaseDelay  time.Duration
}

// NewService создаёт сервис заказов поверх транзакционного хранилища.
func NewService(store domain.Store, options ...Option) *Service {
	opts := ServiceOptions{
		ConflictRetries: defaultConflictRetries,
		RetryBaseDelay:  defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("storefront/orders")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 1
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Service{
		store:           store,
		logger:          logger,
		metrics:         opts.Metrics,
		tracer:          tracer,
		now:             clock,
		newID:           newID,
		conflictRetries: opts.ConflictRetries,
		retryBaseDelay:  opts.RetryBaseDelay,
	}
}

// inTx выполняет fn в транзакции и повторяет её при конфликте конкурентной записи
// с exponential backoff. Остальные ошибки возвращаются сразу.
func (s *Service) inTx(ctx context.Context, operation string, fn func(ctx context.Context, tx domain.Tx) error) error {
	var err error
	for attempt := 0; attempt < s.conflictRetries; attempt++ {
		err = s.store.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}

		if attempt == s.conflictRetries-1 {
			break
		}

		s.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
		}).Warn("concurrent update detected, retrying transaction")

		delay := s.retryBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperationDuration(operation, time.Since(start))
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func totalUnits(items []domain.OrderItem) int {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	return units
}
