package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/entities"
)

const idempotencyKeyHeader = "Idempotency-Key"

const dateLayout = "2006-01-02"

type createOrderRequest struct {
	PaymentMethod string                 `json:"payment_method"`
	Items         []ports.OrderItemInput `json:"items"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("User not authenticated"))
		return
	}

	var req createOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(
		r.Context(),
		userID,
		entities.PaymentMethod(req.PaymentMethod),
		req.Items,
		r.Header.Get(idempotencyKeyHeader),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *HTTPHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("User not authenticated"))
		return
	}

	filter, err := parseOrderFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	orders, err := h.orderService.GetUserOrders(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("User not authenticated"))
		return
	}

	orderID := mux.Vars(r)["id"]

	order, err := h.orderService.GetOrderByID(r.Context(), orderID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"order": order})
}

func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	if orderID == "" {
		h.writeError(w, apperr.Validation("Order ID is required"))
		return
	}

	order, err := h.orderService.ConfirmPayment(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{
		"message": "Payment confirmed successfully",
		"order":   order,
	})
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("User not authenticated"))
		return
	}

	orderID := mux.Vars(r)["orderId"]
	if orderID == "" {
		h.writeError(w, apperr.Validation("Order ID is required"))
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), orderID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

// parseOrderFilter reads the optional status/startDate/endDate query
// parameters. Dates select whole days inclusive.
func parseOrderFilter(r *http.Request) (entities.OrderFilter, error) {
	var filter entities.OrderFilter

	query := r.URL.Query()
	filter.Status = entities.OrderStatus(query.Get("status"))

	if raw := query.Get("startDate"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, apperr.Validation("startDate must be formatted as YYYY-MM-DD")
		}
		start := day.UTC()
		filter.From = &start
	}

	if raw := query.Get("endDate"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, apperr.Validation("endDate must be formatted as YYYY-MM-DD")
		}
		end := day.UTC().Add(24*time.Hour - time.Millisecond)
		filter.To = &end
	}

	return filter, nil
}
