package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// UpdateOrderStatus переводит заказ в новый статус по машине состояний.
// Вызывающий уже авторизован как администратор. Переход в CANCELLED
// возвращает остатки на склад в той же транзакции.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (details domain.OrderDetails, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "orders.UpdateOrderStatus")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(newStatus)))
	defer func() {
		finishSpan(span, err)
		s.observe("update_status", start)
	}()

	if !newStatus.Valid() {
		return domain.OrderDetails{}, domain.ErrInvalidOrderStatus
	}

	var (
		order    domain.Order
		previous domain.OrderStatus
	)
	err = s.inTx(ctx, "update_status", func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := domain.ValidateStatusTransition(current.Status, newStatus); err != nil {
			return err
		}
		previous = current.Status

		if newStatus == domain.OrderStatusCancelled {
			order, err = s.cancelInTx(ctx, tx, current)
			return err
		}

		now := s.timestamp()
		current.Status = newStatus
		current.UpdatedAt = now
		if err := tx.SaveOrder(ctx, current); err != nil {
			return err
		}
		current.Version++
		order = current

		msg, err := newOrderEvent(domain.EventOrderStatusChanged, order, previous, now)
		if err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, msg)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"status":   newStatus,
		}).Warn("update order status failed")
		return domain.OrderDetails{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(previous), string(newStatus))
		if newStatus == domain.OrderStatusCancelled {
			s.metrics.RecordOrderCancelled(metrics.InitiatorAdmin, totalUnits(order.Items))
		}
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       newStatus,
	}).Info("order status updated")

	return s.detailsFor(ctx, order)
}
