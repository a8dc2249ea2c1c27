package order

import (
	"context"
	"time"

	"minem-be/internal/logger"
	"minem-be/internal/metrics"
	"minem-be/internal/notification"

	"go.uber.org/zap"
)

type SweepResult struct {
	Matched       int
	Canceled      int
	RestoredItems int
	Failed        int
}

// Sweeper cancels orders that sat in awaiting_payment past the deadline,
// restoring their stock and notifying the customer.
type Sweeper struct {
	repo     Repository
	notifier notification.Sender
}

func NewSweeper(repo Repository, notifier notification.Sender) *Sweeper {
	return &Sweeper{repo: repo, notifier: notifier}
}

// Sweep processes every expired order in its own transaction so one failure
// never blocks the rest. With dryRun the matching orders are only reported.
func (s *Sweeper) Sweep(ctx context.Context, cutoff time.Duration, dryRun bool) (*SweepResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.Duration("cutoff", cutoff),
		zap.Bool("dry_run", dryRun),
	)

	before := time.Now().Add(-cutoff)
	ids, err := s.repo.FindExpired(ctx, before)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Matched: len(ids)}
	log.Info("expired order scan complete", zap.Int("matched", len(ids)))

	if dryRun {
		for _, id := range ids {
			log.Info("would cancel expired order", zap.String("order_id", id.String()))
		}
		return result, nil
	}

	for _, id := range ids {
		res, err := s.repo.CancelExpiredTx(ctx, id)
		if err != nil {
			result.Failed++
			log.Error("failed to cancel expired order",
				zap.String("order_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		if res == nil {
			// Transitioned by a webhook between scan and cancel.
			continue
		}

		result.Canceled++
		result.RestoredItems += res.RestoredItems
		metrics.ExpiredOrdersCanceled.Inc()
		metrics.StockRestoredItems.Add(float64(res.RestoredItems))

		s.notifyCancellation(ctx, res)
	}

	log.Info("sweep finished",
		zap.Int("canceled", result.Canceled),
		zap.Int("restored_items", result.RestoredItems),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Sweeper) notifyCancellation(ctx context.Context, res *CanceledOrder) {
	err := s.notifier.SendOrderCanceled(ctx, notification.Order{
		ID:            res.OrderID.String(),
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		TotalAmount:   res.TotalAmount,
	}, "order expired before payment")
	if err != nil {
		logger.FromCtx(ctx).Error("failed to send expiry notice",
			zap.String("order_id", res.OrderID.String()),
			zap.Error(err),
		)
	}
}
