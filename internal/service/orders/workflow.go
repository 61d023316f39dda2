package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// PlaceOrder оформляет заказ: в одной транзакции списывает остатки по всем
// позициям, фиксирует цены и создаёт заказ в статусе CONFIRMED.
// Любая ошибка откатывает все списания.
func (s *Service) PlaceOrder(ctx context.Context, userID string, items []domain.PlaceOrderItem) (details domain.OrderDetails, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "orders.PlaceOrder")
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("order.lines", len(items)))
	defer func() {
		finishSpan(span, err)
		s.observe("place", start)
	}()

	if err = domain.ValidatePlaceOrder(userID, items); err != nil {
		s.recordRejected(err)
		return domain.OrderDetails{}, err
	}

	var order domain.Order
	err = s.inTx(ctx, "place", func(ctx context.Context, tx domain.Tx) error {
		now := s.timestamp()
		order = domain.Order{
			ID:          s.newID(),
			UserID:      userID,
			Items:       make([]domain.OrderItem, 0, len(items)),
			TotalAmount: decimal.Zero,
			Status:      domain.OrderStatusConfirmed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		// Повторяющиеся товары видят списание предыдущей строки той же транзакции.
		for _, line := range items {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product.StockQuantity < line.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Available:   product.StockQuantity,
				}
			}
			if err := tx.UpdateProductStock(ctx, product.ID, product.StockQuantity-line.Quantity); err != nil {
				return err
			}

			item := domain.OrderItem{ProductID: product.ID, Quantity: line.Quantity, Price: product.Price}
			order.Items = append(order.Items, item)
			order.TotalAmount = order.TotalAmount.Add(item.Subtotal())
		}

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		msg, err := newOrderEvent(domain.EventOrderPlaced, order, "", now)
		if err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, msg)
	})
	if err != nil {
		s.recordRejected(err)
		s.logger.WithError(err).WithField("user_id", userID).Warn("place order failed")
		return domain.OrderDetails{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced(totalUnits(order.Items))
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.String(),
	}).Info("order placed")

	return s.detailsFor(ctx, order)
}

// CancelOrder отменяет заказ владельца и возвращает остатки на склад.
// Чужой заказ неотличим от отсутствующего.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (details domain.OrderDetails, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "orders.CancelOrder")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("user.id", userID))
	defer func() {
		finishSpan(span, err)
		s.observe("cancel", start)
	}()

	var order domain.Order
	err = s.inTx(ctx, "cancel", func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return domain.ErrOrderNotFound
		}
		if err := current.CheckCancellable(); err != nil {
			return err
		}

		order, err = s.cancelInTx(ctx, tx, current)
		return err
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("cancel order failed")
		return domain.OrderDetails{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled(metrics.InitiatorCustomer, totalUnits(order.Items))
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  userID,
	}).Info("order cancelled")

	return s.detailsFor(ctx, order)
}

// cancelInTx возвращает остатки по всем позициям и переводит заказ в CANCELLED.
// Товары, удалённые из каталога, пропускаются.
func (s *Service) cancelInTx(ctx context.Context, tx domain.Tx, order domain.Order) (domain.Order, error) {
	for _, item := range order.Items {
		err := tx.IncrementProductStock(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, domain.ErrProductNotFound) {
			s.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("product deleted from catalog, stock not restored")
			continue
		}
		if err != nil {
			return domain.Order{}, err
		}
	}

	previous := order.Status
	now := s.timestamp()
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	if err := tx.SaveOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	msg, err := newOrderEvent(domain.EventOrderCancelled, order, previous, now)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.EnqueueOutbox(ctx, msg); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) recordRejected(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOrderRejected(rejectReason(err))
}

func rejectReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return metrics.RejectReasonValidation
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.RejectReasonProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.RejectReasonInsufficientStock
	case domain.IsVersionConflict(err):
		return metrics.RejectReasonConflict
	default:
		return metrics.RejectReasonInternal
	}
}
