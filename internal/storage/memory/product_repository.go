package memory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Записи берут txMu, чтобы не пересекаться с транзакциями заказов.
type productRepository struct {
	store *Store
}

// Create сохраняет новый товар; имя уникально без учёта регистра.
func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return domain.ErrProductAlreadyExists
	}
	name := domain.NormalizeProductName(product.Name)
	if _, taken := r.store.productNames[name]; taken {
		return domain.ErrProductAlreadyExists
	}

	r.store.products[product.ID] = product.Clone()
	r.store.productNames[name] = product.ID
	return nil
}

// Get возвращает товар или ProductNotFoundError.
func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return product.Clone(), nil
}

// GetMany возвращает найденные товары; отсутствующие id пропускаются.
func (r *productRepository) GetMany(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.store.products[id]; ok {
			result[id] = product.Clone()
		}
	}
	return result, nil
}

// Delete удаляет товар; позиции существующих заказов сохраняют ссылку на него.
func (r *productRepository) Delete(_ context.Context, id string) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	delete(r.store.productNames, domain.NormalizeProductName(product.Name))
	delete(r.store.products, id)
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
