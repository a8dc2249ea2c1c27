package stock

import (
	"context"
	"database/sql"
	"fmt"

	"minem-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Ledger is the single primitive every workflow mutates stock through:
// lock the variant row, modify the counter, append an audit row, all inside
// the caller's transaction.
type Ledger interface {
	LockVariants(ctx context.Context, tx *sql.Tx, ids []string) (map[string]*Variant, error)
	Reserve(ctx context.Context, tx *sql.Tx, v *Variant, quantity int, orderID uuid.UUID) error
	Restore(ctx context.Context, tx *sql.Tx, variantID string, quantity int, orderID *uuid.UUID, action Action, note string) error
	Adjust(ctx context.Context, tx *sql.Tx, variantID string, change int, action Action, note string) error
}

type ledger struct{}

func NewLedger() Ledger {
	return &ledger{}
}

// LockVariants acquires row locks on the requested variants for the duration
// of the transaction. Inactive variants are still returned so callers can
// report them instead of treating them as missing.
func (l *ledger) LockVariants(
	ctx context.Context,
	tx *sql.Tx,
	ids []string,
) (map[string]*Variant, error) {

	rows, err := tx.QueryContext(ctx, `
		SELECT id, sku, price, stock, is_active,
		       weight, dimension_length, dimension_width, dimension_height
		FROM product_variants
		WHERE id = ANY($1)
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock variants: %w", err)
	}
	defer rows.Close()

	variants := make(map[string]*Variant, len(ids))
	for rows.Next() {
		var v Variant
		if err := rows.Scan(
			&v.ID, &v.SKU, &v.Price, &v.Stock, &v.IsActive,
			&v.Weight, &v.DimensionLength, &v.DimensionWidth, &v.DimensionHeight,
		); err != nil {
			return nil, err
		}
		variants[v.ID] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return variants, nil
}

// Reserve decrements stock for a variant already locked via LockVariants and
// appends an order_created history row. The in-memory counter is updated so
// repeated calls within one transaction observe each other.
func (l *ledger) Reserve(
	ctx context.Context,
	tx *sql.Tx,
	v *Variant,
	quantity int,
	orderID uuid.UUID,
) error {

	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !v.IsActive {
		return fmt.Errorf("variant %s: %w", v.ID, ErrVariantUnavailable)
	}
	if v.Stock < quantity {
		return fmt.Errorf("variant %s: available %d, requested %d: %w",
			v.ID, v.Stock, quantity, ErrInsufficientStock)
	}

	stockBefore := v.Stock
	stockAfter := stockBefore - quantity

	if _, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = $1, updated_at = NOW()
		WHERE id = $2
	`, stockAfter, v.ID); err != nil {
		return fmt.Errorf("failed to decrement stock for variant %s: %w", v.ID, err)
	}

	note := fmt.Sprintf("reserved for order %s", shortID(orderID))
	if err := l.appendHistory(ctx, tx, v.ID, &orderID, ActionOrderCreated,
		-quantity, stockBefore, stockAfter, note); err != nil {
		return err
	}

	v.Stock = stockAfter

	logger.FromCtx(ctx).Debug("stock reserved",
		zap.String("variant_id", v.ID),
		zap.Int("quantity", quantity),
		zap.Int("stock_after", stockAfter),
	)

	return nil
}

// Restore increments stock unconditionally as a compensating action. The
// variant row is locked here since callers do not hold it yet.
func (l *ledger) Restore(
	ctx context.Context,
	tx *sql.Tx,
	variantID string,
	quantity int,
	orderID *uuid.UUID,
	action Action,
	note string,
) error {

	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	var stockBefore int
	err := tx.QueryRowContext(ctx, `
		SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE
	`, variantID).Scan(&stockBefore)
	if err == sql.ErrNoRows {
		return fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock variant %s: %w", variantID, err)
	}

	stockAfter := stockBefore + quantity

	if _, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = $1, updated_at = NOW()
		WHERE id = $2
	`, stockAfter, variantID); err != nil {
		return fmt.Errorf("failed to restore stock for variant %s: %w", variantID, err)
	}

	if err := l.appendHistory(ctx, tx, variantID, orderID, action,
		quantity, stockBefore, stockAfter, note); err != nil {
		return err
	}

	logger.FromCtx(ctx).Debug("stock restored",
		zap.String("variant_id", variantID),
		zap.Int("quantity", quantity),
		zap.Int("stock_after", stockAfter),
	)

	return nil
}

// Adjust applies a signed manual correction (restock, inventory count fix).
// Stock still may not go negative.
func (l *ledger) Adjust(
	ctx context.Context,
	tx *sql.Tx,
	variantID string,
	change int,
	action Action,
	note string,
) error {

	if change == 0 {
		return ErrInvalidQuantity
	}

	var stockBefore int
	err := tx.QueryRowContext(ctx, `
		SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE
	`, variantID).Scan(&stockBefore)
	if err == sql.ErrNoRows {
		return fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock variant %s: %w", variantID, err)
	}

	stockAfter := stockBefore + change
	if stockAfter < 0 {
		return fmt.Errorf("variant %s: available %d, change %d: %w",
			variantID, stockBefore, change, ErrInsufficientStock)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = $1, updated_at = NOW()
		WHERE id = $2
	`, stockAfter, variantID); err != nil {
		return fmt.Errorf("failed to adjust stock for variant %s: %w", variantID, err)
	}

	return l.appendHistory(ctx, tx, variantID, nil, action,
		change, stockBefore, stockAfter, note)
}

func (l *ledger) appendHistory(
	ctx context.Context,
	tx *sql.Tx,
	variantID string,
	orderID *uuid.UUID,
	action Action,
	change, before, after int,
	note string,
) error {

	var oid any
	if orderID != nil {
		oid = orderID.String()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_history (
			product_variant_id, order_id, action,
			quantity_change, stock_before, stock_after, note
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, variantID, oid, action, change, before, after, note)
	if err != nil {
		return fmt.Errorf("failed to append stock history for variant %s: %w", variantID, err)
	}
	return nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
