package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/auth"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errInvalidBody
	}
	return nil
}

// money сериализует сумму числом с двумя знаками после запятой.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func newUserResponse(u domain.UserSummary) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func newAuthResponse(res auth.Result) authResponse {
	return authResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: newUserResponse(res.User)}
}

type createProductRequest struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	Category      *string         `json:"category"`
	Description   *string         `json:"description"`
}

func (req createProductRequest) toDomain() domain.NewProduct {
	return domain.NewProduct{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		Description:   req.Description,
	}
}

type updateProductRequest struct {
	Name          *string          `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stockQuantity"`
	Category      *string          `json:"category"`
	Description   *string          `json:"description"`
}

func (req updateProductRequest) toDomain() domain.ProductUpdate {
	return domain.ProductUpdate{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		Description:   req.Description,
	}
}

type productResponse struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Price         json.Number `json:"price"`
	StockQuantity int         `json:"stockQuantity"`
	Category      *string     `json:"category"`
	Description   *string     `json:"description"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func newProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		Description:   p.Description,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type placeOrderItem struct {
	ProductID string `json:"productId"`
	// старые клиенты присылают product вместо productId
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	Items []placeOrderItem `json:"items"`
}

func (req placeOrderRequest) toDomain() []domain.PlaceOrderItem {
	items := make([]domain.PlaceOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			productID = strings.TrimSpace(item.Product)
		}
		items = append(items, domain.PlaceOrderItem{ProductID: productID, Quantity: item.Quantity})
	}
	return items
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ProductID string           `json:"productId"`
	Product   *productResponse `json:"product"`
	Quantity  int              `json:"quantity"`
	Price     json.Number      `json:"price"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	User        *userResponse       `json:"user"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount json.Number         `json:"totalAmount"`
	Status      domain.OrderStatus  `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func newOrderResponse(d domain.OrderDetails) orderResponse {
	resp := orderResponse{
		ID:          d.ID,
		UserID:      d.UserID,
		Items:       make([]orderItemResponse, 0, len(d.Lines)),
		TotalAmount: money(d.TotalAmount),
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.User != nil {
		user := newUserResponse(*d.User)
		resp.User = &user
	}
	for _, line := range d.Lines {
		item := orderItemResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     money(line.Price),
		}
		if line.Product != nil {
			product := newProductResponse(*line.Product)
			item.Product = &product
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func newOrderList(list []domain.OrderDetails) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, d := range list {
		out = append(out, newOrderResponse(d))
	}
	return out
}
