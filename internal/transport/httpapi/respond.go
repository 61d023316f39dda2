package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	msgInternalError = "Internal server error"
	msgInvalidBody   = "Invalid request body"
)

var errInvalidBody = errors.New("invalid request body")

// envelope — единый формат ответа REST API.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to encode http response")
	}
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeError переводит доменную ошибку в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются клиенту без деталей.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)
	if status == http.StatusInternalServerError {
		h.requestLogger(r).WithError(err).Error("request failed")
	}
	writeFailure(w, status, message)
}

func classifyError(err error) (int, string) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return http.StatusBadRequest, fmt.Sprintf("Insufficient stock for %s", stockErr.ProductName)
	}

	switch {
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, msgInvalidBody
	case domain.IsValidation(err):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrOrderAlreadyCancelled):
		return http.StatusBadRequest, "Order is already cancelled"
	case errors.Is(err, domain.ErrCannotCancelDeliveredOrder):
		return http.StatusBadRequest, "Cannot cancel a delivered order"
	case errors.Is(err, domain.ErrOrderAlreadyDelivered):
		return http.StatusBadRequest, "Order is already delivered"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusBadRequest, "Invalid order status transition"
	case errors.Is(err, domain.ErrProductAlreadyExists):
		return http.StatusConflict, "Product already exists"
	case errors.Is(err, domain.ErrProductNameAlreadyExists):
		return http.StatusConflict, "Product with this name already exists"
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict, "User with this email already exists"
	case domain.IsVersionConflict(err):
		return http.StatusConflict, "Order was modified concurrently, retry the request"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authorized, token failed"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

// validationMessage склеивает ошибки валидации (в том числе errors.Join) в одну строку.
func validationMessage(err error) string {
	parts := strings.Split(err.Error(), "\n")
	if len(parts) == 0 {
		return err.Error()
	}
	parts[0] = capitalize(parts[0])
	return strings.Join(parts, "; ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
