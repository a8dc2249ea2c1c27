package delivery

import (
	"context"
)

// Item carries the shipping parameters of one order line.
type Item struct {
	Quantity int
	Price    float64

	// Grams and centimeters. Zero values are substituted with defaults.
	Weight          int
	DimensionLength int
	DimensionWidth  int
	DimensionHeight int
}

type EstimateRequest struct {
	Items              []Item
	DestinationAddress string
	Tariff             string
}

type Estimate struct {
	Cost float64
	Days int
}

// Estimator prices a shipment with an external carrier. Implementations may
// fail; callers are expected to substitute a default cost.
type Estimator interface {
	Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error)
}

const (
	TariffTimeInterval = "time_interval"
	TariffSelfPickup   = "self_pickup"
)

const (
	defaultItemWeight = 500
	defaultDimLength  = 30
	defaultDimWidth   = 20
	defaultDimHeight  = 10
)
