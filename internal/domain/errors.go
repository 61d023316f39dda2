package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// Ошибка нехватки остатка: на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другому пользователю.
	ErrOrderNotFound = errors.New("order not found")
	// Ошибка повторной отмены.
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
	// Ошибка смены статуса доставленного заказа.
	ErrOrderAlreadyDelivered = errors.New("order already delivered")
	// Ошибка отмены доставленного заказа.
	ErrCannotCancelDeliveredOrder = errors.New("cannot cancel delivered order")
	// ErrInvalidStatusTransition сигнализирует о запрещённом переходе статуса.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// Ошибка неизвестного значения статуса.
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrConcurrentUpdate: хранилище отклонило транзакцию из-за конкурентной записи (serialization failure, deadlock).
	ErrConcurrentUpdate = errors.New("concurrent update conflict")

	// Ошибки валидации входных данных заказа.
	ErrUserIDRequired    = errors.New("user id is required")
	ErrItemsRequired     = errors.New("order must contain at least one item")
	ErrProductIDRequired = errors.New("product id is required")
	ErrItemQtyInvalid    = errors.New("item quantity must be at least 1")
	ErrAmountMismatch    = errors.New("order total does not match items sum")
	ErrItemPriceInvalid  = errors.New("item price must be positive")

	// Ошибки каталога.
	ErrProductNameRequired      = errors.New("product name is required")
	ErrProductPriceInvalid      = errors.New("product price must be greater than zero")
	ErrProductPriceScale        = errors.New("product price must have at most two decimal places")
	ErrProductPriceTooLarge     = errors.New("product price exceeds 9999999999.99")
	ErrProductStockNegative     = errors.New("product stock quantity must be non-negative")
	ErrProductAlreadyExists     = errors.New("product already exists")
	ErrProductNameAlreadyExists = errors.New("product name already exists")

	// Ошибки пользователей и аутентификации.
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrNameRequired       = errors.New("name is required")
	ErrEmailInvalid       = errors.New("email is invalid")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters long")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrSessionNotFound    = errors.New("session not found")

	// Ошибка смены статуса отсутствующей записи outbox.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")
)

// ProductNotFoundError несёт идентификатор товара, которого нет в каталоге.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// Is позволяет сравнивать ошибку с ErrProductNotFound через errors.Is.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError описывает нехватку остатка по конкретному товару.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

// Is позволяет сравнивать ошибку с ErrInsufficientStock через errors.Is.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsVersionConflict проверяет, является ли ошибка конфликтом конкурентной записи.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrConcurrentUpdate)
}

// IsValidation сообщает, что ошибка вызвана некорректными входными данными.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrUserIDRequired,
		ErrItemsRequired,
		ErrProductIDRequired,
		ErrItemQtyInvalid,
		ErrInvalidOrderStatus,
		ErrProductNameRequired,
		ErrProductPriceInvalid,
		ErrProductPriceScale,
		ErrProductPriceTooLarge,
		ErrProductStockNegative,
		ErrInvalidRole,
		ErrNameRequired,
		ErrEmailInvalid,
		ErrPasswordTooShort,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
