package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/notifier"
)

type WebSocketHandler struct {
	logger           *slog.Logger
	orderService     ports.OrderService
	orderNotifier    *notifier.OrderNotifier
	websocketManager *Manager
}

func NewWebSocketHandler(
	logger *slog.Logger,
	orderService ports.OrderService,
	orderNotifier *notifier.OrderNotifier,
	websocketManager *Manager,
) *WebSocketHandler {
	return &WebSocketHandler{
		logger:           logger,
		orderService:     orderService,
		orderNotifier:    orderNotifier,
		websocketManager: websocketManager,
	}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/orders/{orderId}", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["orderId"]

	// Only existing orders can be watched
	order, err := h.orderService.FindOrder(r.Context(), orderID)
	if err != nil || order == nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	conn, err := h.websocketManager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}

	h.logger.Info("New WebSocket connection", "order_id", orderID)

	h.orderNotifier.Subscribe(orderID, conn)

	// Keep connection open and handle disconnection
	for {
		_, _, readErr := conn.ReadMessage()
		if readErr != nil {
			h.logger.Info("WebSocket connection closed", "order_id", orderID, "error", readErr)
			h.orderNotifier.Unsubscribe(orderID, conn)
			break
		}
	}
}
