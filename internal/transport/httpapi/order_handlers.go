package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), caller.UserID, req.toDomain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Order placed successfully", newOrderResponse(order))
}

func (h *Handler) getOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	list, err := h.orders.GetOrders(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, newOrderList(list), len(list))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	order, err := h.orders.GetOrderByID(r.Context(), mux.Vars(r)["id"], caller.OrderScope())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", newOrderResponse(order))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	order, err := h.orders.CancelOrder(r.Context(), mux.Vars(r)["id"], caller.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order cancelled successfully", newOrderResponse(order))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order status updated successfully", newOrderResponse(order))
}
