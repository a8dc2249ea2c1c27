package order

import "errors"

var (
	ErrNoItems          = errors.New("order has no items")
	ErrTooManyItems     = errors.New("order exceeds the item limit")
	ErrInvalidQuantity  = errors.New("item quantity must be at least 1")
	ErrDuplicateVariant = errors.New("duplicate variant in order")
	ErrInvalidCustomer  = errors.New("customer name and email are required")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPayable  = errors.New("order is not awaiting payment")

	// ErrPaymentCreationFailed means the order and its stock reservation are
	// committed but no payment intent exists yet. The order is recoverable via
	// RetryPaymentCreation.
	ErrPaymentCreationFailed = errors.New("payment creation failed for committed order")
)
