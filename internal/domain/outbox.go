package domain

import "time"

// OutboxStatus — состояние записи transactional outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// AggregateTypeOrder — тип агрегата для событий заказа.
const AggregateTypeOrder = "order"

// Типы событий жизненного цикла заказа.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        OutboxStatus
	AttemptCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// LastError заполняется воркером перед отправкой в DLQ и не хранится в outbox.
	LastError string
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
