package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderEventPayload тело событий жизненного цикла заказа в outbox.
type orderEventPayload struct {
	OrderID        string           `json:"order_id"`
	UserID         string           `json:"user_id"`
	Status         string           `json:"status"`
	PreviousStatus string           `json:"previous_status,omitempty"`
	TotalAmount    string           `json:"total_amount"`
	Items          []orderEventItem `json:"items"`
	Version        int64            `json:"version"`
	OccurredAt     string           `json:"occurred_at"`
}

type orderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

func newOrderEvent(eventType string, order domain.Order, previous domain.OrderStatus, at time.Time) (domain.OutboxMessage, error) {
	payload := orderEventPayload{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		Items:          make([]orderEventItem, 0, len(order.Items)),
		Version:        order.Version,
		OccurredAt:     at.Format(time.RFC3339Nano),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
