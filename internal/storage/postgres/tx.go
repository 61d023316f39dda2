package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// pgTx реализует domain.Tx поверх *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetProductForUpdate(ctx context.Context, id string) (domain.Product, error) {
	product, err := scanProduct(t.tx.QueryRowContext(ctx, selectProductSQL+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
		}
		return domain.Product{}, fmt.Errorf("lock product: %w", mapError(err))
	}
	return product, nil
}

func (t *pgTx) UpdateProductStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return domain.ErrProductStockNegative
	}
	return t.execStock(ctx, `
		UPDATE products
		SET stock_quantity = $1, updated_at = $2
		WHERE id = $3
	`, id, stock)
}

func (t *pgTx) IncrementProductStock(ctx context.Context, id string, delta int) error {
	return t.execStock(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = $2
		WHERE id = $3
	`, id, delta)
}

func (t *pgTx) UpdateProduct(ctx context.Context, product domain.Product) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    price = $2,
		    stock_quantity = $3,
		    category = $4,
		    description = $5,
		    updated_at = $6
		WHERE id = $7
	`,
		product.Name, product.Price, product.StockQuantity,
		product.Category, product.Description, product.UpdatedAt, product.ID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrProductNameAlreadyExists
		case isCheckViolation(err):
			return productCheckError(err)
		}
		return fmt.Errorf("update product: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.ProductNotFoundError{ProductID: product.ID}
	}
	return nil
}

func (t *pgTx) execStock(ctx context.Context, query, id string, value int) error {
	res, err := t.tx.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrProductStockNegative
		}
		return fmt.Errorf("update product stock: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	return nil
}

func (t *pgTx) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, total_amount, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		order.ID, order.UserID, string(order.Status), order.TotalAmount,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrOrderVersionConflict
		case isForeignKeyViolation(err):
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert order: %w", mapError(err))
	}

	for i, item := range order.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, line_no, product_id, quantity, price
			) VALUES ($1,$2,$3,$4,$5)
		`,
			order.ID, i, item.ProductID, item.Quantity, item.Price,
		); err != nil {
			return fmt.Errorf("insert order item: %w", mapError(err))
		}
	}

	return nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	order, err := scanOrder(t.tx.QueryRowContext(ctx, selectOrderSQL+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("lock order: %w", mapError(err))
	}

	items, err := loadItems(ctx, t.tx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// SaveOrder обновляет статус и сумму заказа; позиции после оформления неизменны.
func (t *pgTx) SaveOrder(ctx context.Context, order domain.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    total_amount = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
	`,
		string(order.Status),
		order.TotalAmount,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", mapError(err))
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox message: %w", mapError(err))
	}
	return nil
}

var _ domain.Tx = (*pgTx)(nil)
