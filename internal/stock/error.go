package stock

import "errors"

var (
	// -- Availability --
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrVariantUnavailable = errors.New("variant unavailable")
	ErrVariantNotFound    = errors.New("variant not found")

	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
)
