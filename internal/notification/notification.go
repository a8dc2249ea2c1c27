package notification

import "context"

// Order is the neutral view of an order a notification needs. Both the order
// and payment workflows construct it, so this package stays import-cycle free.
type Order struct {
	ID            string
	CustomerName  string
	CustomerEmail string
	TotalAmount   float64
	PaymentURL    string
}

// Sender delivers customer notifications. Calls are best-effort: callers log
// failures and never let them affect financial or inventory state.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, o Order) error
	SendOrderCanceled(ctx context.Context, o Order, reason string) error
}

// NopSender discards all notifications. Used in development and tests.
type NopSender struct{}

func (NopSender) SendOrderConfirmation(ctx context.Context, o Order) error {
	return nil
}

func (NopSender) SendOrderCanceled(ctx context.Context, o Order, reason string) error {
	return nil
}
