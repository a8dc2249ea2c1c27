package payment

import (
	"context"
	"time"

	"minem-be/internal/logger"
	"minem-be/internal/metrics"
	"minem-be/internal/notification"

	"go.uber.org/zap"
)

// Service reconciles inbound provider webhook events with local payment,
// order and stock state.
type Service interface {
	ProcessEvent(ctx context.Context, ev Event) error
}

type service struct {
	repo     Repository
	notifier notification.Sender
	attempts int
	backoff  time.Duration
}

func NewService(repo Repository, notifier notification.Sender, attempts int, backoff time.Duration) Service {
	if attempts < 1 {
		attempts = 1
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		attempts: attempts,
		backoff:  backoff,
	}
}

// ProcessEvent applies one webhook event with at-most-once effect. Transient
// storage contention is retried with exponential backoff; exhaustion surfaces
// the error so the transport can ask the provider to redeliver.
func (s *service) ProcessEvent(ctx context.Context, ev Event) error {
	log := logger.FromCtx(ctx).With(
		zap.String("provider_payment_id", ev.ProviderPaymentID),
		zap.String("event_type", ev.Type),
	)

	var err error
	backoff := s.backoff
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.processOnce(ctx, ev)
		if err == nil || !isStorageBusy(err) {
			return err
		}

		log.Warn("storage busy during reconciliation, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	log.Error("reconciliation retries exhausted", zap.Error(err))
	return err
}

func (s *service) processOnce(ctx context.Context, ev Event) error {
	log := logger.FromCtx(ctx).With(
		zap.String("provider_payment_id", ev.ProviderPaymentID),
		zap.String("event_type", ev.Type),
	)

	p, err := s.repo.GetByProviderPaymentID(ctx, ev.ProviderPaymentID)
	if err != nil {
		return err
	}

	// Pre-check; the unique (payment_id, event_type) constraint inside the
	// transaction is the authoritative guard.
	duplicate, err := s.repo.HasEvent(ctx, p.ID, ev.Type)
	if err != nil {
		return err
	}
	if duplicate {
		log.Warn("duplicate event, skipping")
		return nil
	}

	switch ev.Type {
	case EventPaymentSucceeded:
		if p.Status == StatusSucceeded {
			// Payment already settled by a concurrent delivery; only record
			// the event, do not reapply effects.
			_, err := s.repo.RecordEvent(ctx, p.ID, ev.Type, ev.Payload)
			return err
		}

		res, applied, err := s.repo.ApplySucceededTx(ctx, ev)
		if err != nil {
			return err
		}
		if applied {
			s.notifyConfirmation(ctx, res)
		}
		return nil

	case EventPaymentCanceled:
		res, applied, err := s.repo.ApplyCanceledTx(ctx, ev)
		if err != nil {
			return err
		}
		if applied {
			metrics.StockRestoredItems.Add(float64(res.RestoredItems))
			s.notifyCancellation(ctx, res, "payment was canceled")
		}
		return nil

	default:
		// Forward compatibility: record unknown event types without acting.
		log.Warn("unhandled event type, recording only")
		_, err := s.repo.RecordEventTx(ctx, ev)
		return err
	}
}

// Notifications run after commit and are best-effort: a failed email must not
// fail the reconciliation.
func (s *service) notifyConfirmation(ctx context.Context, res *ReconciledOrder) {
	err := s.notifier.SendOrderConfirmation(ctx, notification.Order{
		ID:            res.OrderID.String(),
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		TotalAmount:   res.TotalAmount,
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to send order confirmation",
			zap.String("order_id", res.OrderID.String()),
			zap.Error(err),
		)
	}
}

func (s *service) notifyCancellation(ctx context.Context, res *ReconciledOrder, reason string) {
	err := s.notifier.SendOrderCanceled(ctx, notification.Order{
		ID:            res.OrderID.String(),
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		TotalAmount:   res.TotalAmount,
	}, reason)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to send cancellation notice",
			zap.String("order_id", res.OrderID.String()),
			zap.Error(err),
		)
	}
}
