package usecases

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/entities"
)

// fakeOrdersRepository keeps orders in memory and implements the conditional
// update the same way the SQL layer does: the write only lands when the
// current status still matches the expected one.
type fakeOrdersRepository struct {
	mu     sync.Mutex
	orders map[string]*entities.Order
}

func newFakeOrdersRepository() *fakeOrdersRepository {
	return &fakeOrdersRepository{orders: make(map[string]*entities.Order)}
}

func (r *fakeOrdersRepository) InsertOrder(_ context.Context, order *entities.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.IdempotencyKey != nil {
		for _, existing := range r.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *order.IdempotencyKey {
				return entities.ErrDuplicateIdempotencyKey
			}
		}
	}

	clone := *order
	clone.Items = append([]entities.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &clone

	return nil
}

func (r *fakeOrdersRepository) FindOrderByID(_ context.Context, orderID string) (*entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cloneLocked(orderID), nil
}

func (r *fakeOrdersRepository) FindUserOrder(_ context.Context, orderID, userID string) (*entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.cloneLocked(orderID)
	if order == nil || order.UserID != userID {
		return nil, nil
	}

	return order, nil
}

func (r *fakeOrdersRepository) FindByIdempotencyKey(_ context.Context, key string) (*entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, order := range r.orders {
		if order.IdempotencyKey != nil && *order.IdempotencyKey == key {
			return r.cloneLocked(id), nil
		}
	}

	return nil, nil
}

func (r *fakeOrdersRepository) FindUserOrders(_ context.Context, userID string, filter entities.OrderFilter) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []entities.Order
	for id, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		if filter.Status != "" && order.OrderStatus != filter.Status {
			continue
		}
		if filter.From != nil && order.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && order.CreatedAt.After(*filter.To) {
			continue
		}
		result = append(result, *r.cloneLocked(id))
	}

	return result, nil
}

func (r *fakeOrdersRepository) UpdateOrderStatus(_ context.Context, orderID string, expected entities.OrderStatus, change entities.StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok || order.OrderStatus != expected {
		return false, nil
	}

	order.OrderStatus = change.OrderStatus
	if change.PaymentStatus != nil {
		order.PaymentStatus = *change.PaymentStatus
	}
	order.StatusUpdatedAt = change.StatusUpdatedAt

	return true, nil
}

func (r *fakeOrdersRepository) FindDueOrderIDs(_ context.Context, criteria entities.SweepCriteria) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, order := range r.orders {
		if order.OrderStatus != criteria.Status {
			continue
		}
		if criteria.PaymentStatus != "" && order.PaymentStatus != criteria.PaymentStatus {
			continue
		}
		if criteria.Method != "" && order.PaymentMethod != criteria.Method {
			continue
		}

		age := order.StatusUpdatedAt
		if criteria.ByCreatedAt {
			age = order.CreatedAt
		}
		if !age.Before(criteria.Before) {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (r *fakeOrdersRepository) cloneLocked(orderID string) *entities.Order {
	order, ok := r.orders[orderID]
	if !ok {
		return nil
	}

	clone := *order
	clone.Items = append([]entities.OrderItem(nil), order.Items...)

	return &clone
}

// fakeTransactor runs the function directly; transactional behavior itself is
// covered by the repository layer.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCatalog struct {
	prices map[string]float64
}

func (c *fakeCatalog) FindPrice(_ context.Context, menuItemID string) (float64, error) {
	price, ok := c.prices[menuItemID]
	if !ok {
		return 0, entities.ErrMenuItemNotFound
	}
	return price, nil
}

// recordingNotifier captures every published snapshot.
type recordingNotifier struct {
	mu     sync.Mutex
	events []entities.Order
}

func (n *recordingNotifier) Publish(order *entities.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, *order)
}

func (n *recordingNotifier) published() []entities.Order {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]entities.Order(nil), n.events...)
}

func (n *recordingNotifier) countFor(orderID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	var count int
	for _, event := range n.events {
		if event.ID == orderID {
			count++
		}
	}
	return count
}

// fakeClock is a movable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type orderFixture struct {
	service  *OrderService
	repo     *fakeOrdersRepository
	notifier *recordingNotifier
	clock    *fakeClock
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	repo := newFakeOrdersRepository()
	notif := &recordingNotifier{}
	clock := newFakeClock()
	catalog := &fakeCatalog{prices: map[string]float64{
		"pizza":  250,
		"burger": 120,
	}}

	service := NewOrderService(
		slog.Default(),
		fakeTransactor{},
		repo,
		catalog,
		notif,
		WithClock(clock.Now),
	)

	return &orderFixture{service: service, repo: repo, notifier: notif, clock: clock}
}

func TestCreateOrderComputesTotalAndCapturesPrices(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{
		{MenuItemID: "pizza", Quantity: 2},
		{MenuItemID: "burger", Quantity: 1},
	}, "")
	require.NoError(t, err)

	require.Equal(t, entities.OrderStatusPaymentPending, order.OrderStatus)
	require.Equal(t, entities.PaymentStatusPending, order.PaymentStatus)
	require.InDelta(t, 620.0, order.TotalAmount, 0.001)
	require.Len(t, order.Items, 2)
	require.InDelta(t, 250.0, order.Items[0].Price, 0.001)
	require.Equal(t, 2, order.Items[0].Quantity)
	require.Equal(t, f.clock.Now(), order.CreatedAt)
	require.Equal(t, order.CreatedAt, order.StatusUpdatedAt)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, nil, "")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = f.service.CreateOrder(ctx, "user-1", "BITCOIN", []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 0}}, "")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestCreateOrderUnknownMenuItemLeavesNoOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{
		{MenuItemID: "pizza", Quantity: 1},
		{MenuItemID: "sushi", Quantity: 1},
	}, "")
	require.True(t, apperr.IsNotFound(err))

	orders, err := f.service.GetUserOrders(ctx, "user-1", entities.OrderFilter{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestCreateOrderIdempotencyKeyReturnsExistingOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	items := []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}

	first, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, items, "key-1")
	require.NoError(t, err)

	second, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, items, "key-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	orders, err := f.service.GetUserOrders(ctx, "user-1", entities.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestCreateOrderConcurrentDuplicateKeyResolvesToOneOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	items := []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}

	const attempts = 8
	results := make(chan *entities.Order, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, items, "key-race")
			require.NoError(t, err)
			results <- order
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[string]bool)
	for order := range results {
		ids[order.ID] = true
	}
	require.Len(t, ids, 1)

	orders, err := f.service.GetUserOrders(ctx, "user-1", entities.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestConfirmPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	confirmed, err := f.service.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusPaid, confirmed.OrderStatus)
	require.Equal(t, entities.PaymentStatusPaid, confirmed.PaymentStatus)
	require.Equal(t, f.clock.Now(), confirmed.StatusUpdatedAt)

	require.Equal(t, 1, f.notifier.countFor(order.ID))

	// A second confirmation finds the order no longer pending.
	_, err = f.service.ConfirmPayment(ctx, order.ID)
	require.True(t, apperr.IsNotFound(err))
}

func TestConfirmPaymentRejectsCashOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCash, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	_, err = f.service.ConfirmPayment(ctx, order.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.ConfirmPayment(context.Background(), "missing")
	require.True(t, apperr.IsNotFound(err))
}

func TestCancelOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	_, err = f.service.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)

	// PAID orders are still cancelable.
	cancelled, err := f.service.CancelOrder(ctx, order.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusCancelled, cancelled.OrderStatus)
}

func TestCancelOrderTerminalStateFailsAndLeavesOrderUntouched(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, order.ID, "user-1")
	require.NoError(t, err)

	before, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	_, err = f.service.CancelOrder(ctx, order.ID, "user-1")
	require.True(t, apperr.IsNotFound(err))

	after, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, before.StatusUpdatedAt, after.StatusUpdatedAt)
}

func TestCancelOrderScopedToOwner(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, order.ID, "user-2")
	require.True(t, apperr.IsNotFound(err))
}

func TestGetOrderByIDScopedToOwner(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	found, err := f.service.GetOrderByID(ctx, order.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	_, err = f.service.GetOrderByID(ctx, order.ID, "user-2")
	require.True(t, apperr.IsNotFound(err))
}

func TestSweepCancelsUnconfirmedCardOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	// Not due yet.
	f.clock.Advance(9 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)

	current, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusPaymentPending, current.OrderStatus)

	f.clock.Advance(2 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)

	current, err = f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusCancelled, current.OrderStatus)
	require.Equal(t, entities.PaymentStatusPending, current.PaymentStatus)
	require.Equal(t, 1, f.notifier.countFor(order.ID))
}

func TestSweepConfirmsCashOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCash, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	f.clock.Advance(3 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)

	current, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusPaid, current.OrderStatus)
	require.Equal(t, entities.PaymentStatusPaid, current.PaymentStatus)
}

func TestSweepAdvancesOneStepPerPass(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCash, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	// Long past every threshold, yet each sweep moves the order exactly
	// one transition because rules snapshot their candidates first.
	f.clock.Advance(time.Hour)

	f.service.AdvanceOrderStatuses(ctx)
	current, _ := f.service.FindOrder(ctx, order.ID)
	require.Equal(t, entities.OrderStatusPaid, current.OrderStatus)

	// Immediately repeated sweep: PAID is not yet older than the accept
	// delay, nothing changes and nothing is re-published.
	published := f.notifier.countFor(order.ID)
	f.service.AdvanceOrderStatuses(ctx)
	current, _ = f.service.FindOrder(ctx, order.ID)
	require.Equal(t, entities.OrderStatusPaid, current.OrderStatus)
	require.Equal(t, published, f.notifier.countFor(order.ID))

	f.clock.Advance(3 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)
	current, _ = f.service.FindOrder(ctx, order.ID)
	require.Equal(t, entities.OrderStatusAccepted, current.OrderStatus)

	f.clock.Advance(6 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)
	current, _ = f.service.FindOrder(ctx, order.ID)
	require.Equal(t, entities.OrderStatusCompleted, current.OrderStatus)

	// Terminal: further sweeps are no-ops.
	f.clock.Advance(time.Hour)
	f.service.AdvanceOrderStatuses(ctx)
	current, _ = f.service.FindOrder(ctx, order.ID)
	require.Equal(t, entities.OrderStatusCompleted, current.OrderStatus)

	require.Equal(t, 3, f.notifier.countFor(order.ID))
}

func TestSweepUsesStatusAgeForPaidAndAccepted(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	// Confirmed 9 minutes after creation: the order is old by created_at
	// but fresh by status age, so the accept rule must not fire yet.
	f.clock.Advance(9 * time.Minute)
	_, err = f.service.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.service.AdvanceOrderStatuses(ctx)

	current, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusPaid, current.OrderStatus)

	f.clock.Advance(2 * time.Minute)
	f.service.AdvanceOrderStatuses(ctx)

	current, err = f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusAccepted, current.OrderStatus)
}

func TestConcurrentCancelAndSweepHaveOneWinner(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "user-1", entities.PaymentMethodCard, []ports.OrderItemInput{{MenuItemID: "pizza", Quantity: 1}}, "")
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.service.AdvanceOrderStatuses(ctx)
	}()
	go func() {
		defer wg.Done()
		// May lose the race to the sweep; both outcomes leave the order
		// cancelled exactly once.
		_, _ = f.service.CancelOrder(ctx, order.ID, "user-1")
	}()
	wg.Wait()

	current, err := f.service.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusCancelled, current.OrderStatus)
	require.Equal(t, 1, f.notifier.countFor(order.ID))
}
