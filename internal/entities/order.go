package entities

import "time"

// OrderStatus is the lifecycle state of an order. The values are part of the
// wire contract with clients and must not be renamed.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "CREATED" // reserved, never assigned by the creation flow
	OrderStatusPaymentPending OrderStatus = "PAYMENT_PENDING"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusAccepted       OrderStatus = "ACCEPTED"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// IsValid reports whether the payment method is one of the accepted values.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// IsCancelable reports whether a manual cancellation is allowed from this
// status. CANCELLED and COMPLETED are terminal.
func (s OrderStatus) IsCancelable() bool {
	return s == OrderStatusPaymentPending || s == OrderStatusPaid
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	TotalAmount     float64       `json:"total_amount"`
	OrderStatus     OrderStatus   `json:"order_status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	IdempotencyKey  *string       `json:"idempotency_key,omitempty"`
	StatusUpdatedAt time.Time     `json:"status_updated_at"`
	CreatedAt       time.Time     `json:"created_at"`
	Items           []OrderItem   `json:"items" db:"-"`
}

// OrderItem captures the menu item price at order time; it is never updated
// when the catalog price changes later.
type OrderItem struct {
	ID         string  `json:"id"`
	OrderID    string  `json:"order_id"`
	MenuItemID string  `json:"menu_item_id"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// OrderFilter narrows a user's order listing.
type OrderFilter struct {
	Status OrderStatus
	From   *time.Time
	To     *time.Time
}

// StatusChange is the set of fields written by a single status transition.
// StatusUpdatedAt is always written together with the status columns.
type StatusChange struct {
	OrderStatus     OrderStatus
	PaymentStatus   *PaymentStatus
	StatusUpdatedAt time.Time
}

// SweepCriteria selects orders due for one automatic transition rule.
// Before is compared against created_at when ByCreatedAt is set, otherwise
// against status_updated_at.
type SweepCriteria struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Method        PaymentMethod
	Before        time.Time
	ByCreatedAt   bool
}
