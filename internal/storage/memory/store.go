package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
//
// Транзакции выполняются строго по одной (txMu), записи копятся в tx и
// применяются к данным одним шагом при фиксации. Читатели вне транзакций
// видят только зафиксированное состояние.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	products     map[string]domain.Product
	productNames map[string]string
	orders       map[string]domain.Order
	users        map[string]domain.User
	emails       map[string]string
	outbox       map[string]*outboxRecord
	outboxSeq    int64
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		productNames: make(map[string]string),
		orders:       make(map[string]domain.Order),
		users:        make(map[string]domain.User),
		emails:       make(map[string]string),
		outbox:       make(map[string]*outboxRecord),
	}
}

// WithinTx выполняет fn в сериализованной транзакции.
// При ошибке или панике накопленные изменения отбрасываются.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

// Products возвращает репозиторий каталога.
func (s *Store) Products() domain.ProductRepository { return &productRepository{store: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{store: s} }

// Users возвращает репозиторий пользователей.
func (s *Store) Users() domain.UserRepository { return &userRepository{store: s} }

// Outbox возвращает репозиторий transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{store: s} }

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, product := range tx.products {
		current, ok := s.products[id]
		if !ok {
			continue
		}
		oldName := domain.NormalizeProductName(current.Name)
		newName := domain.NormalizeProductName(product.Name)
		if oldName != newName {
			if s.productNames[oldName] == id {
				delete(s.productNames, oldName)
			}
			s.productNames[newName] = id
		}
		s.products[id] = product
	}
	for id, order := range tx.orders {
		s.orders[id] = order
	}

	now := time.Now().UTC()
	for _, msg := range tx.outbox {
		s.outboxSeq++
		msg.Status = domain.OutboxStatusPending
		msg.CreatedAt = now
		msg.UpdatedAt = now
		s.outbox[msg.ID] = &outboxRecord{msg: msg, seq: s.outboxSeq}
	}
}

// memTx накапливает изменения одной транзакции.
type memTx struct {
	store    *Store
	products map[string]domain.Product
	orders   map[string]domain.Order
	outbox   []domain.OutboxMessage
}

func newTx(store *Store) *memTx {
	return &memTx{
		store:    store,
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

func (t *memTx) GetProductForUpdate(_ context.Context, id string) (domain.Product, error) {
	product, err := t.product(id)
	if err != nil {
		return domain.Product{}, err
	}
	return product.Clone(), nil
}

func (t *memTx) UpdateProductStock(_ context.Context, id string, stock int) error {
	if stock < 0 {
		return domain.ErrProductStockNegative
	}
	product, err := t.product(id)
	if err != nil {
		return err
	}
	product.StockQuantity = stock
	product.UpdatedAt = time.Now().UTC()
	t.products[id] = product
	return nil
}

func (t *memTx) IncrementProductStock(ctx context.Context, id string, delta int) error {
	product, err := t.product(id)
	if err != nil {
		return err
	}
	return t.UpdateProductStock(ctx, id, product.StockQuantity+delta)
}

// UpdateProduct заменяет товар в изменениях транзакции. Уникальность имени
// проверяется и по зафиксированным данным, и по уже переименованным в tx товарам.
func (t *memTx) UpdateProduct(_ context.Context, product domain.Product) error {
	if product.StockQuantity < 0 {
		return domain.ErrProductStockNegative
	}
	current, err := t.product(product.ID)
	if err != nil {
		return err
	}

	name := domain.NormalizeProductName(product.Name)
	if name != domain.NormalizeProductName(current.Name) && t.productNameTaken(name, product.ID) {
		return domain.ErrProductNameAlreadyExists
	}

	t.products[product.ID] = product.Clone()
	return nil
}

func (t *memTx) productNameTaken(name, id string) bool {
	for otherID, staged := range t.products {
		if otherID != id && domain.NormalizeProductName(staged.Name) == name {
			return true
		}
	}

	t.store.mu.RLock()
	ownerID, taken := t.store.productNames[name]
	t.store.mu.RUnlock()
	if !taken || ownerID == id {
		return false
	}
	// Владелец имени уже прочитан в tx и выше оказался переименован.
	_, staged := t.products[ownerID]
	return !staged
}

func (t *memTx) CreateOrder(_ context.Context, order domain.Order) error {
	if _, ok := t.orders[order.ID]; ok {
		return domain.ErrOrderVersionConflict
	}
	t.store.mu.RLock()
	_, exists := t.store.orders[order.ID]
	t.store.mu.RUnlock()
	if exists {
		return domain.ErrOrderVersionConflict
	}

	t.orders[order.ID] = order.Clone()
	return nil
}

func (t *memTx) GetOrderForUpdate(_ context.Context, id string) (domain.Order, error) {
	order, err := t.order(id)
	if err != nil {
		return domain.Order{}, err
	}
	return order.Clone(), nil
}

// SaveOrder перезаписывает заказ, проверяя версию (optimistic locking).
func (t *memTx) SaveOrder(_ context.Context, order domain.Order) error {
	current, err := t.order(order.ID)
	if err != nil {
		return err
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	saved := order.Clone()
	saved.Version++
	t.orders[order.ID] = saved
	return nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)
	t.outbox = append(t.outbox, msg)
	return nil
}

// product читает товар из изменений транзакции, затем из зафиксированных данных.
func (t *memTx) product(id string) (domain.Product, error) {
	if product, ok := t.products[id]; ok {
		return product, nil
	}

	t.store.mu.RLock()
	product, ok := t.store.products[id]
	t.store.mu.RUnlock()
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}

	product = product.Clone()
	t.products[id] = product
	return product, nil
}

func (t *memTx) order(id string) (domain.Order, error) {
	if order, ok := t.orders[id]; ok {
		return order, nil
	}

	t.store.mu.RLock()
	order, ok := t.store.orders[id]
	t.store.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order = order.Clone()
	t.orders[id] = order
	return order, nil
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*memTx)(nil)
)
