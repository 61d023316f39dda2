package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// recordingPublisher запоминает опубликованные события и отвечает ошибками из errs по очереди.
type recordingPublisher struct {
	mu     sync.Mutex
	errs   []error
	events []domain.OutboxMessage
	onCall func()
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.onCall != nil {
		p.onCall()
	}
	p.events = append(p.events, event)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	if len(p.errs) > 1 {
		p.errs = p.errs[1:]
	}
	return err
}

func (p *recordingPublisher) published() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.events...)
}

// shop поднимает memory-хранилище с покупателем и товаром и оформляет через него заказы.
type shop struct {
	store  *memory.Store
	orders *orders.Service
}

func newShop(t *testing.T) *shop {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, domain.User{
		ID:    "customer-1",
		Name:  "Customer",
		Email: "customer-1@example.com",
		Role:  domain.RoleCustomer,
	}))
	now := time.Now().UTC()
	require.NoError(t, store.Products().Create(ctx, domain.Product{
		ID:            "kettle",
		Name:          "Kettle",
		Price:         decimal.RequireFromString("24.90"),
		StockQuantity: 10,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
	return &shop{store: store, orders: orders.NewService(store)}
}

func (s *shop) placeOrder(t *testing.T, quantity int) string {
	t.Helper()

	details, err := s.orders.PlaceOrder(context.Background(), "customer-1",
		[]domain.PlaceOrderItem{{ProductID: "kettle", Quantity: quantity}})
	require.NoError(t, err)
	return details.ID
}

func (s *shop) pending(t *testing.T) int {
	t.Helper()

	stats, err := s.store.Outbox().Stats(context.Background())
	require.NoError(t, err)
	return stats.PendingCount
}

func TestWorker_DeliversOrderLifecycleInOrder(t *testing.T) {
	s := newShop(t)
	first := s.placeOrder(t, 1)
	second := s.placeOrder(t, 2)
	_, err := s.orders.CancelOrder(context.Background(), first, "customer-1")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	publisher := &recordingPublisher{}
	worker := NewWorker(s.store.Outbox(), publisher,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
		WithRetryBaseDelay(0),
	)

	result := worker.ProcessOnce(context.Background())
	require.Equal(t, BatchResult{Sent: 3}, result)
	require.Zero(t, s.pending(t))

	events := publisher.published()
	require.Len(t, events, 3)
	require.Equal(t, []string{first, second, first},
		[]string{events[0].AggregateID, events[1].AggregateID, events[2].AggregateID})
	require.Equal(t, domain.EventOrderPlaced, events[0].EventType)
	require.Equal(t, domain.EventOrderCancelled, events[2].EventType)

	var payload struct {
		OrderID     string `json:"order_id"`
		Status      string `json:"status"`
		TotalAmount string `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	require.Equal(t, second, payload.OrderID)
	require.Equal(t, "49.80", payload.TotalAmount)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP storefront_outbox_pending_records Current number of pending records in transactional outbox.
# TYPE storefront_outbox_pending_records gauge
storefront_outbox_pending_records 0
# HELP storefront_outbox_publish_attempts_total Total number of outbox publish attempts grouped by result.
# TYPE storefront_outbox_publish_attempts_total counter
storefront_outbox_publish_attempts_total{result="sent"} 3
`), "storefront_outbox_publish_attempts_total", "storefront_outbox_pending_records"))

	require.Equal(t, BatchResult{}, worker.ProcessOnce(context.Background()), "sent events are not redelivered")
}

func TestWorker_RetriesUntilBrokerAccepts(t *testing.T) {
	s := newShop(t)
	orderID := s.placeOrder(t, 1)

	reg := prometheus.NewRegistry()
	publisher := &recordingPublisher{errs: []error{errors.New("leader not available"), errors.New("leader not available"), nil}}
	worker := NewWorker(s.store.Outbox(), publisher,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	require.Equal(t, BatchResult{Sent: 1}, worker.ProcessOnce(context.Background()))
	require.Len(t, publisher.published(), 3)
	require.Equal(t, orderID, publisher.published()[2].AggregateID)
	require.Zero(t, s.pending(t))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP storefront_outbox_publish_attempts_total Total number of outbox publish attempts grouped by result.
# TYPE storefront_outbox_publish_attempts_total counter
storefront_outbox_publish_attempts_total{result="retry_error"} 2
storefront_outbox_publish_attempts_total{result="sent"} 1
`), "storefront_outbox_publish_attempts_total"))
}

func TestWorker_DeadLettersOrderEventUnchanged(t *testing.T) {
	s := newShop(t)
	orderID := s.placeOrder(t, 3)

	original, err := s.store.Outbox().PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, original, 1)

	publisher := &recordingPublisher{errs: []error{errors.New("broker down")}}
	dlq := &recordingPublisher{}
	worker := NewWorker(s.store.Outbox(), publisher,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(2),
	)

	require.Equal(t, BatchResult{Failed: 1}, worker.ProcessOnce(context.Background()))
	require.Len(t, publisher.published(), 2)
	require.Zero(t, s.pending(t), "failed event leaves the backlog")

	dead := dlq.published()
	require.Len(t, dead, 1)
	require.Equal(t, orderID, dead[0].AggregateID)
	require.Equal(t, domain.EventOrderPlaced, dead[0].EventType)
	require.JSONEq(t, string(original[0].Payload), string(dead[0].Payload), "dlq replay republishes the payload as is")
	require.Equal(t, 2, dead[0].AttemptCount)
	require.Contains(t, dead[0].LastError, "broker down")
}

func TestWorker_MarksFailedEvenWhenDLQRejects(t *testing.T) {
	s := newShop(t)
	s.placeOrder(t, 1)

	reg := prometheus.NewRegistry()
	worker := NewWorker(s.store.Outbox(), &recordingPublisher{errs: []error{errors.New("broker down")}},
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
		WithDLQPublisher(&recordingPublisher{errs: []error{errors.New("dlq down")}}),
		WithRetryBaseDelay(0),
		WithMaxAttempts(1),
	)

	require.Equal(t, BatchResult{Failed: 1}, worker.ProcessOnce(context.Background()))
	require.Zero(t, s.pending(t))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP storefront_outbox_publish_attempts_total Total number of outbox publish attempts grouped by result.
# TYPE storefront_outbox_publish_attempts_total counter
storefront_outbox_publish_attempts_total{result="dlq_failed"} 1
storefront_outbox_publish_attempts_total{result="failed"} 1
storefront_outbox_publish_attempts_total{result="retry_error"} 1
`), "storefront_outbox_publish_attempts_total"))
}

func TestWorker_LeavesEventsPendingOnShutdown(t *testing.T) {
	s := newShop(t)
	for range 3 {
		s.placeOrder(t, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher := &recordingPublisher{errs: []error{context.Canceled}, onCall: cancel}
	dlq := &recordingPublisher{}
	worker := NewWorker(s.store.Outbox(), publisher,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(time.Second),
	)

	started := time.Now()
	result := worker.ProcessOnce(ctx)
	require.Less(t, time.Since(started), 500*time.Millisecond, "retry pause must end on cancel")

	require.Equal(t, BatchResult{Aborted: 3}, result)
	require.Len(t, publisher.published(), 1)
	require.Empty(t, dlq.published())
	require.Equal(t, 3, s.pending(t))
}

func TestWorker_RetryDelayDoublesUpToCap(t *testing.T) {
	worker := NewWorker(nil, nil,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithRetryBaseDelay(time.Second),
	)

	cases := map[int]time.Duration{
		1:  time.Second,
		2:  2 * time.Second,
		3:  4 * time.Second,
		4:  maxRetryDelay,
		64: maxRetryDelay,
	}
	for attempt, want := range cases {
		require.Equal(t, want, worker.retryDelay(attempt), "attempt %d", attempt)
	}

	noPause := NewWorker(nil, nil,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithRetryBaseDelay(-time.Second),
	)
	require.Zero(t, noPause.retryDelay(3))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	s := newShop(t)
	s.placeOrder(t, 1)

	publisher := &recordingPublisher{}
	worker := NewWorker(s.store.Outbox(), publisher,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(publisher.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outbox worker did not stop on cancel")
	}
}

func TestWorker_RunDisabledWithoutPublisher(t *testing.T) {
	worker := NewWorker(memory.NewStore().Outbox(), nil,
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without publisher must return immediately")
	}
}

func TestLogPublisher_NeverFails(t *testing.T) {
	publisher := NewLogPublisher(nil)
	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:          "msg-log",
		AggregateID: "order-log",
		EventType:   domain.EventOrderCancelled,
		Payload:     []byte(`{}`),
	})
	require.NoError(t, err)
}
