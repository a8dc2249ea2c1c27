package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)

const ProviderYookassa = "yookassa"

type Payment struct {
	ID                int64
	OrderID           uuid.UUID
	Provider          string
	ProviderPaymentID string
	Amount            float64
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Event is one inbound webhook notification from the provider.
type Event struct {
	ProviderPaymentID string
	Type              string
	Payload           json.RawMessage
}

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// PaymentEvent is the stored, append-only record of a processed webhook
// delivery. The (payment_id, event_type) unique constraint is the dedup gate.
type PaymentEvent struct {
	ID        int64
	PaymentID int64
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}
