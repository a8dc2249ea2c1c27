package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCanceled        Status = "canceled"
)

// Order is the aggregate root. Once paid it is immutable; only the payment
// reconciliation and the expiry sweeper transition it afterwards.
type Order struct {
	ID           uuid.UUID
	Status       Status
	TotalAmount  float64
	DeliveryCost float64
	PaymentURL   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Customer CustomerInfo
	Items    []OrderItem
}

// OrderItem snapshots the variant price at order time. It is never recomputed.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	VariantID string
	Quantity  int
	Price     float64
}

type CustomerInfo struct {
	FullName        string
	Email           string
	Phone           string
	ShippingAddress string
	Comment         string
}

type RequestedItem struct {
	VariantID string
	Quantity  int
}

type CreateOrderInput struct {
	Items     []RequestedItem
	Customer  CustomerInfo
	ReturnURL string
}

const maxOrderItems = 50
