package metrics

import "github.com/prometheus/client_golang/prometheus"

// Исходы запросов с ключом идемпотентности.
const (
	IdempotencyOutcomeProcessed  = "processed"
	IdempotencyOutcomeReplayed   = "replayed"
	IdempotencyOutcomeConflict   = "conflict"
	IdempotencyOutcomeInProgress = "in_progress"
)

// IdempotencyMetrics описывает очистку просроченных ключей идемпотентности.
type IdempotencyMetrics struct {
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	lastDeleted    prometheus.Gauge
	replays        *prometheus.CounterVec
}

// NewIdempotencyMetrics создаёт метрики в глобальном реестре Prometheus.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
		replays: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_requests_total",
			Help: "Requests carrying an Idempotency-Key grouped by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordCleanupRun фиксирует результат цикла очистки ("ok" или "error").
func (m *IdempotencyMetrics) RecordCleanupRun(result string, deleted int) {
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// AddDeleted увеличивает общий счётчик удалённых записей.
func (m *IdempotencyMetrics) AddDeleted(n int) {
	m.cleanupDeleted.Add(float64(n))
}

// RecordRequest фиксирует исход запроса с ключом идемпотентности:
// processed, replayed, conflict или in_progress.
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	m.replays.WithLabelValues(outcome).Inc()
}
