package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// GetOrders возвращает заказы, видимые вызывающему, от новых к старым:
// администратору все, покупателю только собственные.
func (s *Service) GetOrders(ctx context.Context, caller domain.Caller) (result []domain.OrderDetails, err error) {
	ctx, span := s.startSpan(ctx, "orders.GetOrders")
	span.SetAttributes(attribute.String("user.id", caller.UserID), attribute.String("user.role", string(caller.Role)))
	defer func() { finishSpan(span, err) }()

	list, err := s.store.Orders().List(ctx, domain.OrderFilter{UserID: caller.OrderScope()})
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, list)
}

// GetOrderByID возвращает заказ. Пустой scopeUserID означает неограниченный доступ;
// иначе заказ другого пользователя возвращается как ErrOrderNotFound.
func (s *Service) GetOrderByID(ctx context.Context, orderID, scopeUserID string) (details domain.OrderDetails, err error) {
	ctx, span := s.startSpan(ctx, "orders.GetOrderByID")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer func() { finishSpan(span, err) }()

	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	if scopeUserID != "" && order.UserID != scopeUserID {
		return domain.OrderDetails{}, domain.ErrOrderNotFound
	}
	return s.detailsFor(ctx, order)
}

func (s *Service) detailsFor(ctx context.Context, order domain.Order) (domain.OrderDetails, error) {
	resolved, err := s.resolve(ctx, []domain.Order{order})
	if err != nil {
		return domain.OrderDetails{}, err
	}
	return resolved[0], nil
}

// resolve подставляет текущие данные товаров и владельцев заказов.
// Удалённый товар или пользователь остаются nil.
func (s *Service) resolve(ctx context.Context, list []domain.Order) ([]domain.OrderDetails, error) {
	productIDs := make([]string, 0)
	userIDs := make([]string, 0, len(list))
	seenProducts := make(map[string]struct{})
	seenUsers := make(map[string]struct{})
	for _, order := range list {
		if _, ok := seenUsers[order.UserID]; !ok {
			seenUsers[order.UserID] = struct{}{}
			userIDs = append(userIDs, order.UserID)
		}
		for _, item := range order.Items {
			if _, ok := seenProducts[item.ProductID]; !ok {
				seenProducts[item.ProductID] = struct{}{}
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}

	products, err := s.store.Products().GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.store.Users().GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	result := make([]domain.OrderDetails, 0, len(list))
	for _, order := range list {
		details := domain.OrderDetails{
			Order: order,
			Lines: make([]domain.OrderItemDetails, 0, len(order.Items)),
		}
		if user, ok := users[order.UserID]; ok {
			summary := user.Summary()
			details.User = &summary
		}
		for _, item := range order.Items {
			line := domain.OrderItemDetails{OrderItem: item}
			if product, ok := products[item.ProductID]; ok {
				line.Product = &product
			}
			details.Lines = append(details.Lines, line)
		}
		result = append(result, details)
	}
	return result, nil
}
