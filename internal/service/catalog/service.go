package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service управляет товарами каталога.
type Service struct {
	store    domain.Store
	products domain.ProductRepository
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{store: store, products: store.Products(), logger: logger, now: time.Now}
}

// CreateProduct создаёт товар. Имя уникально без учёта регистра.
func (s *Service) CreateProduct(ctx context.Context, input domain.NewProduct) (domain.Product, error) {
	now := s.now().UTC()
	product := domain.Product{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(input.Name),
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		Category:      input.Category,
		Description:   input.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
		"stock":      product.StockQuantity,
	}).Info("product created")
	return product.Clone(), nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.products.Get(ctx, id)
}

// UpdateProduct применяет частичное обновление товара. Чтение и запись идут
// в одной транзакции под блокировкой строки, поэтому остаток, списанный
// параллельным заказом, не перезаписывается старым значением.
func (s *Service) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (domain.Product, error) {
	var updated domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}

		product := update.Apply(current)
		if errs := product.Validate(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		product.UpdatedAt = s.now().UTC()

		if err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": id,
		"stock":      updated.StockQuantity,
	}).Info("product updated")
	return updated.Clone(), nil
}

// DeleteProduct удаляет товар. Заказы сохраняют ссылку на удалённый товар.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}
