package stock

import (
	"time"
)

// Variant is the purchasable SKU row the ledger guards. Mutations must go
// through the ledger while the row is locked.
type Variant struct {
	ID       string
	SKU      string
	Price    float64
	Stock    int
	IsActive bool

	// Shipping parameters, used for delivery cost estimation.
	Weight          int
	DimensionLength int
	DimensionWidth  int
	DimensionHeight int
}

type Action string

const (
	ActionOrderCreated     Action = "order_created"
	ActionOrderPaid        Action = "order_paid"
	ActionOrderCanceled    Action = "order_canceled"
	ActionManualAdjustment Action = "manual_adjustment"
	ActionRestock          Action = "restock"
)

// History is one append-only audit row per stock mutation.
type History struct {
	ID             int64
	VariantID      string
	OrderID        *string
	Action         Action
	QuantityChange int
	StockBefore    int
	StockAfter     int
	Note           string
	CreatedAt      time.Time
}
