package delivery

import (
	"context"

	"minem-be/internal/logger"

	"go.uber.org/zap"
)

// Service wraps the carrier estimator with a fixed fallback cost so delivery
// pricing can never block checkout.
type Service struct {
	provider    Estimator
	defaultCost float64
}

func NewService(provider Estimator, defaultCost float64) *Service {
	return &Service{
		provider:    provider,
		defaultCost: defaultCost,
	}
}

func (s *Service) CalculateDeliveryCost(ctx context.Context, req EstimateRequest) float64 {
	est, err := s.provider.Estimate(ctx, req)
	if err != nil {
		logger.FromCtx(ctx).Warn("delivery estimate failed, using default cost",
			zap.Error(err),
			zap.Float64("default_cost", s.defaultCost),
		)
		return s.defaultCost
	}

	return est.Cost
}
