package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении заказа для метки reason.
const (
	RejectReasonValidation        = "validation"
	RejectReasonProductNotFound   = "product_not_found"
	RejectReasonInsufficientStock = "insufficient_stock"
	RejectReasonConflict          = "conflict"
	RejectReasonInternal          = "internal"
)

// Инициаторы отмены заказа для метки initiator.
const (
	InitiatorCustomer = "customer"
	InitiatorAdmin    = "admin"
)

// OrderMetrics содержит метрики workflow заказов.
type OrderMetrics struct {
	ordersPlaced      prometheus.Counter
	ordersRejected    *prometheus.CounterVec
	ordersCancelled   *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec

	// Движение остатков склада в штуках.
	unitsReserved prometheus.Counter
	unitsReleased prometheus.Counter
}

// NewOrderMetrics создаёт метрики в глобальном реестре Prometheus.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном реестре (используется в тестах).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of orders placed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_rejected_total",
			Help: "Total number of order placements rejected, by reason",
		}, []string{"reason"}),
		ordersCancelled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_cancelled_total",
			Help: "Total number of orders cancelled, by initiator",
		}, []string{"initiator"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_operation_duration_seconds",
			Help:    "Duration of order workflow operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_units_reserved_total",
			Help: "Total number of stock units taken by placed orders",
		}),
		unitsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_units_released_total",
			Help: "Total number of stock units returned by cancelled orders",
		}),
	}
}

// RecordOrderPlaced фиксирует успешно оформленный заказ и списанные единицы.
func (m *OrderMetrics) RecordOrderPlaced(units int) {
	m.ordersPlaced.Inc()
	m.unitsReserved.Add(float64(units))
}

// RecordOrderRejected увеличивает счётчик отказов по причине.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled фиксирует отмену и возвращённые на склад единицы.
func (m *OrderMetrics) RecordOrderCancelled(initiator string, units int) {
	m.ordersCancelled.WithLabelValues(initiator).Inc()
	m.unitsReleased.Add(float64(units))
}

// RecordStatusTransition увеличивает счётчик переходов статуса.
func (m *OrderMetrics) RecordStatusTransition(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
