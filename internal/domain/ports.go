package domain

import (
	"context"
	"time"
)

// Store — транзакционное хранилище товаров, заказов, пользователей и outbox.
type Store interface {
	// WithinTx выполняет fn в одной транзакции. Ошибка или паника fn
	// откатывает все изменения; nil фиксирует их атомарно.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository
	Outbox() OutboxRepository
}

// Tx — операции, доступные внутри транзакции. Чтения с блокировкой видят
// записи, сделанные ранее в этой же транзакции.
type Tx interface {
	// GetProductForUpdate читает товар и блокирует его до конца транзакции.
	GetProductForUpdate(ctx context.Context, id string) (Product, error)
	// UpdateProductStock записывает новый остаток товара.
	UpdateProductStock(ctx context.Context, id string, stock int) error
	// IncrementProductStock увеличивает остаток на delta.
	// Возвращает ErrProductNotFound, если товар удалён из каталога.
	IncrementProductStock(ctx context.Context, id string, delta int) error
	// UpdateProduct перезаписывает поля товара, прочитанного через GetProductForUpdate.
	// Занятое другим товаром имя даёт ErrProductNameAlreadyExists.
	UpdateProduct(ctx context.Context, product Product) error

	CreateOrder(ctx context.Context, order Order) error
	// GetOrderForUpdate читает заказ и блокирует его до конца транзакции.
	GetOrderForUpdate(ctx context.Context, id string) (Order, error)
	// SaveOrder сохраняет заказ с проверкой версии и увеличивает её.
	SaveOrder(ctx context.Context, order Order) error

	EnqueueOutbox(ctx context.Context, msg OutboxMessage) error
}

// ProductRepository — операции каталога вне транзакций.
// Изменение существующего товара идёт только через Tx.UpdateProduct,
// чтобы не затереть остаток, списанный параллельным заказом.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	Delete(ctx context.Context, id string) error
}

// OrderFilter ограничивает выборку заказов. Пустой UserID означает все заказы.
type OrderFilter struct {
	UserID string
}

// OrderRepository описывает чтение заказов.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы от новых к старым.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// UserRepository хранит учётные записи.
type UserRepository interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetMany(ctx context.Context, ids []string) (map[string]User, error)
	UpdateRole(ctx context.Context, id string, role Role) (User, error)
}

// OutboxRepository позволяет читать и подтверждать события для публикации.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SessionStore хранит выданные токены доступа.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}
