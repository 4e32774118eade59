package entities

import "errors"

// Domain sentinels surfaced by the storage layer and interpreted by the
// services. They deliberately carry no driver detail.
var (
	// ErrDuplicateIdempotencyKey means the unique index on the order
	// idempotency key rejected an insert: a concurrent retry with the same
	// key already stored the order.
	ErrDuplicateIdempotencyKey = errors.New("order with this idempotency key already exists")

	ErrMenuItemNotFound = errors.New("menu item not found")

	ErrDuplicateEmail = errors.New("user with this email already exists")
)
