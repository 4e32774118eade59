package ports

import (
	"context"

	"github.com/sand/restaurant-orders-app/backend/internal/entities"
)

// OrderItemInput is one requested line of a new order. The price is resolved
// from the catalog at creation time, never supplied by the caller.
type OrderItemInput struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// OrderService defines the interface for order lifecycle operations.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, method entities.PaymentMethod, items []OrderItemInput, idempotencyKey string) (*entities.Order, error)
	GetUserOrders(ctx context.Context, userID string, filter entities.OrderFilter) ([]entities.Order, error)
	GetOrderByID(ctx context.Context, orderID, userID string) (*entities.Order, error)
	FindOrder(ctx context.Context, orderID string) (*entities.Order, error)
	ConfirmPayment(ctx context.Context, orderID string) (*entities.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string) (*entities.Order, error)
	AdvanceOrderStatuses(ctx context.Context)
}

// MenuService defines the interface for menu catalog operations.
type MenuService interface {
	GetMenuItems(ctx context.Context) ([]entities.MenuItem, error)
	GetMenuItemByID(ctx context.Context, id string) (*entities.MenuItem, error)
	CreateMenuItem(ctx context.Context, name string, description *string, price float64) (*entities.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id string, name string, description *string, price float64) (*entities.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error
}

// RegisterInput is the payload for a new user registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthService defines the interface for the credential flow.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*entities.User, error)
	Login(ctx context.Context, email, password string) (*entities.User, string, error)
	ParseToken(token string) (string, error)
}
