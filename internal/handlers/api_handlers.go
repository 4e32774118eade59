package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/metrics"
	"github.com/sand/restaurant-orders-app/backend/internal/usecases"
)

var (
	_ ports.OrderService = (*usecases.OrderService)(nil)
	_ ports.MenuService  = (*usecases.MenuService)(nil)
	_ ports.AuthService  = (*usecases.AuthService)(nil)
)

type HTTPHandler struct {
	logger *slog.Logger

	orderService ports.OrderService
	menuService  ports.MenuService
	authService  ports.AuthService
}

func NewHTTPHandler(
	logger *slog.Logger,
	orderService ports.OrderService,
	menuService ports.MenuService,
	authService ports.AuthService,
) *HTTPHandler {
	return &HTTPHandler{
		logger:       logger,
		orderService: orderService,
		menuService:  menuService,
		authService:  authService,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	auth := h.requireAuth

	// Auth
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Login).Methods("POST")

	// Menu
	router.HandleFunc("/menu", h.GetMenuItems).Methods("GET")
	router.HandleFunc("/menu", auth(h.CreateMenuItem)).Methods("POST")
	router.HandleFunc("/menu/{id}", h.GetMenuItemByID).Methods("GET")
	router.HandleFunc("/menu/{id}", auth(h.UpdateMenuItem)).Methods("PUT")
	router.HandleFunc("/menu/{id}", auth(h.DeleteMenuItem)).Methods("DELETE")

	// Orders
	router.HandleFunc("/orders", auth(h.CreateOrder)).Methods("POST")
	router.HandleFunc("/orders", auth(h.GetOrders)).Methods("GET")
	router.HandleFunc("/orders/{id}", auth(h.GetOrderByID)).Methods("GET")
	router.HandleFunc("/orders/{orderId}/confirm-payment", auth(h.ConfirmPayment)).Methods("POST")
	router.HandleFunc("/orders/{orderId}/cancel", auth(h.CancelOrder)).Methods("POST")

	// Metrics
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

// writeSuccess renders the success envelope with the given payload fields.
func (h *HTTPHandler) writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError renders the failure envelope. Internal faults are logged with
// their cause but only the stable code and message reach the client.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr.Code == apperr.CodeInternal {
		h.logger.Error("request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	encodeErr := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    appErr.Code,
		"message": appErr.Message,
	})
	if encodeErr != nil {
		h.logger.Error("failed to encode error response", "error", encodeErr)
	}
}

func (h *HTTPHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, apperr.Validation("Request body is not valid JSON"))
		return false
	}
	return true
}
