package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/internal/metrics"
)

type OrdersRepository interface {
	InsertOrder(ctx context.Context, order *entities.Order) error
	FindOrderByID(ctx context.Context, orderID string) (*entities.Order, error)
	FindUserOrder(ctx context.Context, orderID, userID string) (*entities.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.Order, error)
	FindUserOrders(ctx context.Context, userID string, filter entities.OrderFilter) ([]entities.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, expected entities.OrderStatus, change entities.StatusChange) (bool, error)
	FindDueOrderIDs(ctx context.Context, criteria entities.SweepCriteria) ([]string, error)
}

// Catalog resolves the current price of a menu item. The lifecycle engine
// captures the price into the order line once and never re-queries it.
type Catalog interface {
	FindPrice(ctx context.Context, menuItemID string) (float64, error)
}

// Transactor scopes a function to one database transaction. Repository calls
// made with the ctx it passes down join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderNotifier delivers an order snapshot to subscribers of that order's id.
// Delivery is best-effort and must only be invoked after the write producing
// the snapshot has committed.
type OrderNotifier interface {
	Publish(order *entities.Order)
}

// SweepTimings are the thresholds of the automatic status-advancement rules.
type SweepTimings struct {
	CardPaymentTimeout time.Duration
	CashConfirmDelay   time.Duration
	AcceptDelay        time.Duration
	CompleteDelay      time.Duration
}

func DefaultSweepTimings() SweepTimings {
	return SweepTimings{
		CardPaymentTimeout: ports.CardPaymentTimeout,
		CashConfirmDelay:   ports.CashConfirmDelay,
		AcceptDelay:        ports.AcceptDelay,
		CompleteDelay:      ports.CompleteDelay,
	}
}

type OrderService struct {
	logger *slog.Logger

	transactor Transactor
	orders     OrdersRepository
	catalog    Catalog
	notifier   OrderNotifier

	timings SweepTimings
	now     func() time.Time
}

type OrderOption func(*OrderService)

// WithClock replaces the wall clock, used by tests to simulate elapsed time.
func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func WithSweepTimings(timings SweepTimings) OrderOption {
	return func(s *OrderService) { s.timings = timings }
}

func NewOrderService(
	logger *slog.Logger,
	transactor Transactor,
	orders OrdersRepository,
	catalog Catalog,
	notifier OrderNotifier,
	opts ...OrderOption,
) *OrderService {
	s := &OrderService{
		logger:     logger,
		transactor: transactor,
		orders:     orders,
		catalog:    catalog,
		notifier:   notifier,
		timings:    DefaultSweepTimings(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateOrder validates the request, resolves prices, computes the total and
// persists the order with all of its lines in one transaction. When an
// idempotency key is supplied, a retried request returns the order already
// stored under that key instead of creating a duplicate.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	userID string,
	method entities.PaymentMethod,
	items []ports.OrderItemInput,
	idempotencyKey string,
) (*entities.Order, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}
	if !method.IsValid() {
		return nil, apperr.Validation("Payment method must be CASH or CARD")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation(fmt.Sprintf("Quantity for menu item %s must be positive", item.MenuItemID))
		}
	}

	if idempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, apperr.Internal("failed to look up order", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	order, err := s.createOrderTx(ctx, userID, method, items, idempotencyKey)
	if errors.Is(err, entities.ErrDuplicateIdempotencyKey) {
		// A concurrent retry with the same key won the insert; the unique
		// index guarantees exactly one stored order, so return that one.
		existing, findErr := s.orders.FindByIdempotencyKey(ctx, idempotencyKey)
		if findErr != nil || existing == nil {
			return nil, apperr.Internal("failed to look up order", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	s.logger.Info("order created",
		"order_id", order.ID,
		"user_id", userID,
		"payment_method", method,
		"total_amount", order.TotalAmount)

	return order, nil
}

func (s *OrderService) createOrderTx(
	ctx context.Context,
	userID string,
	method entities.PaymentMethod,
	items []ports.OrderItemInput,
	idempotencyKey string,
) (*entities.Order, error) {
	now := s.now().UTC()

	order := &entities.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		OrderStatus:     entities.OrderStatusPaymentPending,
		PaymentStatus:   entities.PaymentStatusPending,
		PaymentMethod:   method,
		StatusUpdatedAt: now,
		CreatedAt:       now,
	}
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var total float64
		lines := make([]entities.OrderItem, 0, len(items))

		for _, item := range items {
			price, err := s.catalog.FindPrice(ctx, item.MenuItemID)
			if errors.Is(err, entities.ErrMenuItemNotFound) {
				return apperr.NotFound(fmt.Sprintf("Menu item %s not found", item.MenuItemID))
			}
			if err != nil {
				return apperr.Internal("failed to resolve menu item price", err)
			}

			total += price * float64(item.Quantity)
			lines = append(lines, entities.OrderItem{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				MenuItemID: item.MenuItemID,
				Price:      price,
				Quantity:   item.Quantity,
			})
		}

		order.TotalAmount = total
		order.Items = lines

		return s.orders.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetUserOrders returns the user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, filter entities.OrderFilter) ([]entities.Order, error) {
	orders, err := s.orders.FindUserOrders(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}

	return orders, nil
}

// GetOrderByID returns an order only if it belongs to the given user.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID, userID string) (*entities.Order, error) {
	order, err := s.orders.FindUserOrder(ctx, orderID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to look up order", err)
	}
	if order == nil {
		return nil, apperr.NotFound(fmt.Sprintf("Order %s not found", orderID))
	}

	return order, nil
}

// FindOrder looks an order up without an owner filter. Used by the websocket
// subscription endpoint to verify the order exists before registering.
func (s *OrderService) FindOrder(ctx context.Context, orderID string) (*entities.Order, error) {
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to look up order", err)
	}
	if order == nil {
		return nil, apperr.NotFound(fmt.Sprintf("Order %s not found", orderID))
	}

	return order, nil
}

// ConfirmPayment marks a pending CARD order as paid. The status precondition
// is re-verified by the conditional update, so a race against the sweep or a
// cancellation resolves to exactly one winner.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string) (*entities.Order, error) {
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to look up order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}
	if order.OrderStatus != entities.OrderStatusPaymentPending {
		return nil, apperr.NotFound("Order is no longer awaiting payment")
	}
	if order.PaymentMethod != entities.PaymentMethodCard {
		return nil, apperr.Validation("Only CARD payments can be confirmed manually")
	}

	paid := entities.PaymentStatusPaid
	return s.applyTransition(ctx, orderID, entities.OrderStatusPaymentPending, entities.StatusChange{
		OrderStatus:     entities.OrderStatusPaid,
		PaymentStatus:   &paid,
		StatusUpdatedAt: s.now().UTC(),
	}, "confirm")
}

// CancelOrder cancels an order owned by the user. Only PAYMENT_PENDING and
// PAID orders are cancelable; terminal states fail as not-found since the
// caller cannot distinguish "never existed" from "already moved on".
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID string) (*entities.Order, error) {
	order, err := s.orders.FindUserOrder(ctx, orderID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to look up order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("Order not found")
	}
	if !order.OrderStatus.IsCancelable() {
		return nil, apperr.NotFound("Order can no longer be cancelled")
	}

	return s.applyTransition(ctx, orderID, order.OrderStatus, entities.StatusChange{
		OrderStatus:     entities.OrderStatusCancelled,
		StatusUpdatedAt: s.now().UTC(),
	}, "cancel")
}

// applyTransition performs a conditional status update and, only after the
// write committed, re-fetches the order and fans the snapshot out.
func (s *OrderService) applyTransition(
	ctx context.Context,
	orderID string,
	expected entities.OrderStatus,
	change entities.StatusChange,
	trigger string,
) (*entities.Order, error) {
	ok, err := s.orders.UpdateOrderStatus(ctx, orderID, expected, change)
	if err != nil {
		return nil, apperr.Internal("failed to update order status", err)
	}
	if !ok {
		// Lost the race: the order left the expected status between the
		// read and the write.
		return nil, apperr.NotFound("Order has already been updated")
	}

	updated, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil || updated == nil {
		return nil, apperr.Internal("failed to reload order", err)
	}

	s.notifier.Publish(updated)
	metrics.StatusTransitions.WithLabelValues(string(expected), string(change.OrderStatus), trigger).Inc()
	s.logger.Info("order status updated",
		"order_id", orderID,
		"from", expected,
		"to", change.OrderStatus,
		"trigger", trigger)

	return updated, nil
}

type sweepRule struct {
	name     string
	criteria entities.SweepCriteria
	change   entities.StatusChange
}

// AdvanceOrderStatuses runs the four time-driven transition rules in a fixed
// order. Each rule works on a snapshot of ids taken before it writes, so an
// order advances at most one step per invocation. A failing rule is logged
// and does not stop the remaining rules; the next sweep retries it.
func (s *OrderService) AdvanceOrderStatuses(ctx context.Context) {
	now := s.now().UTC()
	paid := entities.PaymentStatusPaid

	rules := []sweepRule{
		{
			name: "cancel_unconfirmed_card_orders",
			criteria: entities.SweepCriteria{
				Status:        entities.OrderStatusPaymentPending,
				PaymentStatus: entities.PaymentStatusPending,
				Method:        entities.PaymentMethodCard,
				Before:        now.Add(-s.timings.CardPaymentTimeout),
				ByCreatedAt:   true,
			},
			change: entities.StatusChange{OrderStatus: entities.OrderStatusCancelled},
		},
		{
			name: "confirm_cash_orders",
			criteria: entities.SweepCriteria{
				Status:        entities.OrderStatusPaymentPending,
				PaymentStatus: entities.PaymentStatusPending,
				Method:        entities.PaymentMethodCash,
				Before:        now.Add(-s.timings.CashConfirmDelay),
				ByCreatedAt:   true,
			},
			change: entities.StatusChange{OrderStatus: entities.OrderStatusPaid, PaymentStatus: &paid},
		},
		{
			name: "accept_paid_orders",
			criteria: entities.SweepCriteria{
				Status: entities.OrderStatusPaid,
				Before: now.Add(-s.timings.AcceptDelay),
			},
			change: entities.StatusChange{OrderStatus: entities.OrderStatusAccepted},
		},
		{
			name: "complete_accepted_orders",
			criteria: entities.SweepCriteria{
				Status: entities.OrderStatusAccepted,
				Before: now.Add(-s.timings.CompleteDelay),
			},
			change: entities.StatusChange{OrderStatus: entities.OrderStatusCompleted},
		},
	}

	for _, rule := range rules {
		if err := s.applySweepRule(ctx, now, rule); err != nil {
			s.logger.Error("sweep rule failed", "rule", rule.name, "error", err)
		}
	}

	metrics.SweepRuns.Inc()
}

func (s *OrderService) applySweepRule(ctx context.Context, now time.Time, rule sweepRule) error {
	ids, err := s.orders.FindDueOrderIDs(ctx, rule.criteria)
	if err != nil {
		return fmt.Errorf("failed to select due orders: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	change := rule.change
	change.StatusUpdatedAt = now

	var advanced int
	for _, id := range ids {
		ok, err := s.orders.UpdateOrderStatus(ctx, id, rule.criteria.Status, change)
		if err != nil {
			s.logger.Error("sweep transition failed", "rule", rule.name, "order_id", id, "error", err)
			continue
		}
		if !ok {
			// A manual transition got there first.
			continue
		}

		order, err := s.orders.FindOrderByID(ctx, id)
		if err != nil || order == nil {
			s.logger.Error("failed to reload swept order", "rule", rule.name, "order_id", id, "error", err)
			continue
		}

		s.notifier.Publish(order)
		metrics.StatusTransitions.WithLabelValues(string(rule.criteria.Status), string(change.OrderStatus), "sweep").Inc()
		advanced++
	}

	if advanced > 0 {
		s.logger.Info("sweep rule advanced orders", "rule", rule.name, "count", advanced)
	}

	return nil
}
