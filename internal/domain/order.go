package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ оформлен, товар списан со склада.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered — заказ доставлен (терминальный статус).
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён, остатки возвращены (терминальный статус).
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// allowedTransitions — допустимые переходы машины состояний заказа.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidOrderStatus
	}
	return status, nil
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ValidateStatusTransition проверяет переход from → to.
// Терминальные статусы дают собственные ошибки, чтобы вызывающий мог их различать.
func ValidateStatusTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrInvalidOrderStatus
	}
	if from.IsTerminal() {
		if from == OrderStatusDelivered {
			return ErrOrderAlreadyDelivered
		}
		return ErrOrderAlreadyCancelled
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrInvalidStatusTransition
}

// OrderItem — позиция заказа с ценой, зафиксированной на момент оформления.
type OrderItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal возвращает стоимость позиции.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	UserID      string
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidOrderStatus)
	}

	// Сумма заказа должна совпадать с суммой позиций: qty * price.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Quantity < 1 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if !item.Price.IsPositive() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.Subtotal())
	}
	if !calc.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// CheckCancellable проверяет, что заказ можно отменить.
func (o *Order) CheckCancellable() error {
	switch o.Status {
	case OrderStatusCancelled:
		return ErrOrderAlreadyCancelled
	case OrderStatusDelivered:
		return ErrCannotCancelDeliveredOrder
	}
	return nil
}

// Clone возвращает копию заказа с собственным слайсом позиций.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

// PlaceOrderItem — строка запроса на оформление заказа.
type PlaceOrderItem struct {
	ProductID string
	Quantity  int
}

// ValidatePlaceOrder проверяет запрос до открытия транзакции.
func ValidatePlaceOrder(userID string, items []PlaceOrderItem) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if len(items) == 0 {
		return ErrItemsRequired
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return ErrProductIDRequired
		}
		if item.Quantity < 1 {
			return ErrItemQtyInvalid
		}
	}
	return nil
}

// OrderItemDetails — позиция заказа с текущими данными товара.
// Product равен nil, если товар удалён из каталога.
type OrderItemDetails struct {
	OrderItem
	Product *Product
}

// OrderDetails — заказ, подготовленный к отображению.
type OrderDetails struct {
	Order
	User  *UserSummary
	Lines []OrderItemDetails
}
