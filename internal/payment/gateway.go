package payment

import (
	"context"
	"time"
)

type CreatePaymentRequest struct {
	Amount        float64
	Currency      string
	OrderID       string
	ReturnURL     string
	CustomerEmail string
	Description   string
}

type CreatePaymentResult struct {
	ProviderPaymentID string
	ConfirmationURL   string
	Status            string
}

// ProviderPayment is the provider's own view of a payment, used for
// out-of-band reconciliation checks.
type ProviderPayment struct {
	ID     string
	Status string
	Amount float64
	PaidAt *time.Time
}

// Gateway abstracts the external payment provider. One instance is
// constructed at process start and injected into workflows.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	GetPayment(ctx context.Context, providerPaymentID string) (*ProviderPayment, error)
}
