package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Коды ошибок PostgreSQL, которые транслируются в доменные.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// Имена CHECK-ограничений таблицы products, которые PostgreSQL
// генерирует по умолчанию.
const (
	productsPriceCheck = "products_price_check"
	productsStockCheck = "products_stock_quantity_check"
)

// productCheckError переводит нарушение CHECK-ограничения products в ошибку валидации.
func productCheckError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == productsPriceCheck {
		return domain.ErrProductPriceInvalid
	}
	return domain.ErrProductStockNegative
}

// mapError превращает конфликты конкурентных транзакций в domain.ErrConcurrentUpdate,
// сохраняя исходную ошибку в тексте.
func mapError(err error) error {
	switch pgErrorCode(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %v", domain.ErrConcurrentUpdate, err)
	default:
		return err
	}
}
