package notifier

import (
	"log/slog"
	"sync"

	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/internal/metrics"
)

const orderUpdatedEvent = "orderUpdated"

// Conn is the subset of a websocket connection the notifier needs.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// OrderEvent is the payload delivered to subscribers of an order id.
type OrderEvent struct {
	Event string          `json:"event"`
	Order *entities.Order `json:"order"`
}

// OrderNotifier fans order snapshots out to websocket subscribers. Topics are
// order ids: a connection only receives updates for orders it explicitly
// subscribed to. Delivery is best-effort; a failed write drops the
// subscriber and is never surfaced to the code that committed the change.
type OrderNotifier struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]map[Conn]bool
	closed      bool
}

func New(logger *slog.Logger) *OrderNotifier {
	return &OrderNotifier{
		logger:      logger,
		subscribers: make(map[string]map[Conn]bool),
	}
}

func (n *OrderNotifier) Subscribe(orderID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		conn.Close()
		return
	}

	if n.subscribers[orderID] == nil {
		n.subscribers[orderID] = make(map[Conn]bool)
	}
	n.subscribers[orderID][conn] = true

	n.logger.Debug("subscriber added", "order_id", orderID, "subscribers", len(n.subscribers[orderID]))
}

func (n *OrderNotifier) Unsubscribe(orderID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.removeLocked(orderID, conn)
}

// Publish delivers the order snapshot to every subscriber of the order's id.
// Callers must only invoke it after the write producing the snapshot has
// been committed.
func (n *OrderNotifier) Publish(order *entities.Order) {
	event := OrderEvent{Event: orderUpdatedEvent, Order: order}

	n.mu.Lock()
	defer n.mu.Unlock()

	conns := n.subscribers[order.ID]
	if len(conns) == 0 {
		return
	}

	for conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			n.logger.Error("failed to deliver order update, dropping subscriber",
				"order_id", order.ID, "error", err)
			metrics.NotificationFailures.Inc()
			n.removeLocked(order.ID, conn)
			conn.Close()
			continue
		}
		metrics.NotificationsDelivered.Inc()
	}

	n.logger.Debug("order update published", "order_id", order.ID, "status", order.OrderStatus)
}

// SubscriberCount reports how many connections listen on an order id.
func (n *OrderNotifier) SubscriberCount(orderID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.subscribers[orderID])
}

// Close tears the fan-out down, closing every remaining connection. Further
// subscriptions are rejected.
func (n *OrderNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	for orderID, conns := range n.subscribers {
		for conn := range conns {
			conn.Close()
		}
		delete(n.subscribers, orderID)
	}
}

func (n *OrderNotifier) removeLocked(orderID string, conn Conn) {
	conns := n.subscribers[orderID]
	if conns == nil {
		return
	}

	delete(conns, conn)
	if len(conns) == 0 {
		delete(n.subscribers, orderID)
	}
}
