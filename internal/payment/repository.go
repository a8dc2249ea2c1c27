package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"minem-be/internal/logger"
	"minem-be/internal/metrics"
	"minem-be/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciledOrder carries what the post-commit notification step needs about
// the order a webhook event just transitioned.
type ReconciledOrder struct {
	OrderID       uuid.UUID
	CustomerName  string
	CustomerEmail string
	TotalAmount   float64
	RestoredItems int
}

type Repository interface {
	Save(ctx context.Context, p *Payment) error
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Payment, error)
	GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	HasEvent(ctx context.Context, paymentID int64, eventType string) (bool, error)
	RecordEvent(ctx context.Context, paymentID int64, eventType string, payload json.RawMessage) (bool, error)

	// ApplySucceededTx and ApplyCanceledTx run the reconciliation transaction:
	// payment row lock, event dedup insert, then state transitions. A false
	// return means the event was already recorded by a concurrent delivery.
	ApplySucceededTx(ctx context.Context, ev Event) (*ReconciledOrder, bool, error)
	ApplyCanceledTx(ctx context.Context, ev Event) (*ReconciledOrder, bool, error)
	RecordEventTx(ctx context.Context, ev Event) (bool, error)
}

type repository struct {
	db     *sql.DB
	ledger stock.Ledger
}

func NewRepository(db *sql.DB, ledger stock.Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

func (r *repository) Save(ctx context.Context, p *Payment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, provider, provider_payment_id, amount, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, p.OrderID, p.Provider, p.ProviderPaymentID, p.Amount, p.Status).
		Scan(&p.ID, &p.CreatedAt)
	if isPendingConflict(err) {
		return ErrPendingPaymentExists
	}
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (r *repository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Payment, error) {
	var p Payment
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, provider, provider_payment_id, amount, status, created_at, updated_at
		FROM payments
		WHERE provider_payment_id = $1
	`, providerPaymentID).Scan(
		&p.ID, &p.OrderID, &p.Provider, &p.ProviderPaymentID,
		&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, provider, provider_payment_id, amount, status, created_at, updated_at
		FROM payments
		WHERE order_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID).Scan(
		&p.ID, &p.OrderID, &p.Provider, &p.ProviderPaymentID,
		&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) HasEvent(ctx context.Context, paymentID int64, eventType string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM payment_events WHERE payment_id = $1 AND event_type = $2
		)
	`, paymentID, eventType).Scan(&exists)
	return exists, err
}

// RecordEvent inserts the dedup row without touching payment or order state.
// Returns false when the event was already recorded.
func (r *repository) RecordEvent(ctx context.Context, paymentID int64, eventType string, payload json.RawMessage) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_events (payment_id, event_type, payload)
		VALUES ($1,$2,$3)
		ON CONFLICT (payment_id, event_type) DO NOTHING
		RETURNING id
	`, paymentID, eventType, payload).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) ApplySucceededTx(ctx context.Context, ev Event) (*ReconciledOrder, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider_payment_id", ev.ProviderPaymentID),
		zap.String("event_type", ev.Type),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	p, err := lockPayment(ctx, tx, ev.ProviderPaymentID)
	if err != nil {
		return nil, false, err
	}

	inserted, err := insertEventTx(ctx, tx, p.ID, ev.Type, ev.Payload)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// A concurrent delivery won the race; its transaction applied the effects.
		log.Warn("duplicate event detected under lock, skipping")
		return nil, false, tx.Commit()
	}

	orderStatus, err := lockOrderStatus(ctx, tx, p.OrderID)
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'succeeded', updated_at = NOW() WHERE id = $1
	`, p.ID); err != nil {
		return nil, false, err
	}

	if orderStatus == orderStatusCanceled {
		// The order was canceled and its stock restored before the success
		// event arrived. Record that money was captured but do not resurrect
		// the order; this needs a manual refund.
		metrics.PaymentOrderConflicts.Inc()
		log.Warn("payment succeeded for canceled order, leaving order canceled",
			zap.String("order_id", p.OrderID.String()),
		)
		return nil, false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'paid', updated_at = NOW() WHERE id = $1
	`, p.OrderID); err != nil {
		return nil, false, err
	}

	res, err := loadReconciledOrder(ctx, tx, p.OrderID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	log.Info("payment succeeded, order marked as paid",
		zap.String("order_id", p.OrderID.String()),
	)
	return res, true, nil
}

func (r *repository) ApplyCanceledTx(ctx context.Context, ev Event) (*ReconciledOrder, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider_payment_id", ev.ProviderPaymentID),
		zap.String("event_type", ev.Type),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	p, err := lockPayment(ctx, tx, ev.ProviderPaymentID)
	if err != nil {
		return nil, false, err
	}

	inserted, err := insertEventTx(ctx, tx, p.ID, ev.Type, ev.Payload)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		log.Warn("duplicate event detected under lock, skipping")
		return nil, false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'canceled', updated_at = NOW() WHERE id = $1
	`, p.ID); err != nil {
		return nil, false, err
	}

	// Compensating action: give every reserved item back to stock.
	items, err := orderItemsTx(ctx, tx, p.OrderID)
	if err != nil {
		return nil, false, err
	}

	restored := 0
	note := fmt.Sprintf("payment %s canceled", ev.ProviderPaymentID)
	for _, it := range items {
		if err := r.ledger.Restore(ctx, tx, it.variantID, it.quantity,
			&p.OrderID, stock.ActionOrderCanceled, note); err != nil {
			return nil, false, err
		}
		restored++
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'canceled', updated_at = NOW() WHERE id = $1
	`, p.OrderID); err != nil {
		return nil, false, err
	}

	res, err := loadReconciledOrder(ctx, tx, p.OrderID)
	if err != nil {
		return nil, false, err
	}
	res.RestoredItems = restored

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	log.Info("payment canceled, order canceled, stock restored",
		zap.String("order_id", p.OrderID.String()),
		zap.Int("restored_items", restored),
	)
	return res, true, nil
}

// RecordEventTx stores an event the workflow does not act on yet, still under
// the payment row lock so the audit trail stays serialized.
func (r *repository) RecordEventTx(ctx context.Context, ev Event) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	p, err := lockPayment(ctx, tx, ev.ProviderPaymentID)
	if err != nil {
		return false, err
	}

	inserted, err := insertEventTx(ctx, tx, p.ID, ev.Type, ev.Payload)
	if err != nil {
		return false, err
	}

	return inserted, tx.Commit()
}

// ----------------- helpers -----------------

const orderStatusCanceled = "canceled"

func lockOrderStatus(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&status)
	return status, err
}

func lockPayment(ctx context.Context, tx *sql.Tx, providerPaymentID string) (*Payment, error) {
	var p Payment
	err := tx.QueryRowContext(ctx, `
		SELECT id, order_id, amount, status
		FROM payments
		WHERE provider_payment_id = $1
		FOR UPDATE
	`, providerPaymentID).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ProviderPaymentID = providerPaymentID
	return &p, nil
}

func insertEventTx(ctx context.Context, tx *sql.Tx, paymentID int64, eventType string, payload json.RawMessage) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payment_events (payment_id, event_type, payload)
		VALUES ($1,$2,$3)
		ON CONFLICT (payment_id, event_type) DO NOTHING
		RETURNING id
	`, paymentID, eventType, payload).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type reservedItem struct {
	variantID string
	quantity  int
}

func orderItemsTx(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) ([]reservedItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_variant_id, quantity
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []reservedItem
	for rows.Next() {
		var it reservedItem
		if err := rows.Scan(&it.variantID, &it.quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadReconciledOrder(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*ReconciledOrder, error) {
	var res ReconciledOrder
	res.OrderID = orderID
	err := tx.QueryRowContext(ctx, `
		SELECT o.total_amount, c.full_name, c.email
		FROM orders o
		JOIN order_customers c ON c.order_id = o.id
		WHERE o.id = $1
	`, orderID).Scan(&res.TotalAmount, &res.CustomerName, &res.CustomerEmail)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
