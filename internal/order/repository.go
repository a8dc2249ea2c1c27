package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"minem-be/internal/logger"
	"minem-be/internal/stock"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CanceledOrder carries what the sweeper needs after an expired order was
// rolled up: notification fields plus how many item positions went back to stock.
type CanceledOrder struct {
	OrderID       uuid.UUID
	CustomerName  string
	CustomerEmail string
	TotalAmount   float64
	RestoredItems int
}

type Repository interface {
	// GetVariants is a plain read, no locks. Used for the delivery estimate
	// that runs before the creation transaction.
	GetVariants(ctx context.Context, ids []string) (map[string]*stock.Variant, error)

	// CreateOrderTx runs the whole reservation transaction: lock variants,
	// snapshot prices, compute the total, persist order/customer/items and
	// reserve stock. On return the order carries its total and item prices.
	CreateOrderTx(ctx context.Context, o *Order) error

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	SetPaymentURL(ctx context.Context, id uuid.UUID, url string) error

	FindExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error)

	// CancelExpiredTx cancels one expired order: restore every item, cancel
	// still-open payments, flip the order to canceled. Returns nil (no error)
	// when the order already left awaiting_payment, so a webhook racing the
	// sweeper wins cleanly.
	CancelExpiredTx(ctx context.Context, id uuid.UUID) (*CanceledOrder, error)
}

type repository struct {
	db     *sql.DB
	ledger stock.Ledger
}

func NewRepository(db *sql.DB, ledger stock.Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

func (r *repository) GetVariants(ctx context.Context, ids []string) (map[string]*stock.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, price, stock, is_active,
		       weight, dimension_length, dimension_width, dimension_height
		FROM product_variants
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	variants := make(map[string]*stock.Variant, len(ids))
	for rows.Next() {
		var v stock.Variant
		if err := rows.Scan(
			&v.ID, &v.SKU, &v.Price, &v.Stock, &v.IsActive,
			&v.Weight, &v.DimensionLength, &v.DimensionWidth, &v.DimensionHeight,
		); err != nil {
			return nil, err
		}
		variants[v.ID] = &v
	}
	return variants, rows.Err()
}

func (r *repository) CreateOrderTx(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Lock every requested variant row for the whole transaction.
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.VariantID)
	}

	variants, err := r.ledger.LockVariants(ctx, tx, ids)
	if err != nil {
		return err
	}

	// 2. Snapshot prices and compute the total before any write.
	var itemsTotal float64
	for i := range o.Items {
		v, ok := variants[o.Items[i].VariantID]
		if !ok {
			return fmt.Errorf("variant %s: %w", o.Items[i].VariantID, stock.ErrVariantNotFound)
		}
		if !v.IsActive {
			return fmt.Errorf("variant %s: %w", v.ID, stock.ErrVariantUnavailable)
		}
		if v.Stock < o.Items[i].Quantity {
			return fmt.Errorf("variant %s: available %d, requested %d: %w",
				v.ID, v.Stock, o.Items[i].Quantity, stock.ErrInsufficientStock)
		}
		o.Items[i].Price = v.Price
		itemsTotal += v.Price * float64(o.Items[i].Quantity)
	}
	o.TotalAmount = itemsTotal + o.DeliveryCost

	// 3. Persist the aggregate.
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, status, total_amount, delivery_cost)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at
	`, o.ID, o.Status, o.TotalAmount, o.DeliveryCost).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_customers (order_id, full_name, email, phone, shipping_address, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, o.ID, o.Customer.FullName, o.Customer.Email, o.Customer.Phone,
		o.Customer.ShippingAddress, o.Customer.Comment); err != nil {
		return fmt.Errorf("failed to insert order customer: %w", err)
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_variant_id, quantity, price)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, o.ID, o.Items[i].VariantID, o.Items[i].Quantity, o.Items[i].Price).
			Scan(&o.Items[i].ID); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	// 4. Reserve under the locks taken in step 1.
	for i := range o.Items {
		v := variants[o.Items[i].VariantID]
		if err := r.ledger.Reserve(ctx, tx, v, o.Items[i].Quantity, o.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.status, o.total_amount, o.delivery_cost, o.payment_url,
		       o.created_at, o.updated_at,
		       c.full_name, c.email, c.phone, c.shipping_address, c.comment
		FROM orders o
		JOIN order_customers c ON c.order_id = o.id
		WHERE o.id = $1
	`, id).Scan(
		&o.ID, &o.Status, &o.TotalAmount, &o.DeliveryCost, &o.PaymentURL,
		&o.CreatedAt, &o.UpdatedAt,
		&o.Customer.FullName, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.ShippingAddress, &o.Customer.Comment,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_variant_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		it := OrderItem{OrderID: id}
		if err := rows.Scan(&it.ID, &it.VariantID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *repository) SetPaymentURL(ctx context.Context, id uuid.UUID, url string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_url = $1, updated_at = NOW() WHERE id = $2
	`, url, id)
	if err != nil {
		return fmt.Errorf("failed to set payment url: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) FindExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status = 'awaiting_payment' AND created_at < $1
		ORDER BY created_at
	`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) CancelExpiredTx(ctx context.Context, id uuid.UUID) (*CanceledOrder, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", id.String()))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Re-check the status under lock: a webhook may have transitioned the
	// order between the scan and this transaction.
	var status Status
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != StatusAwaitingPayment {
		log.Info("order left awaiting_payment before sweep, skipping",
			zap.String("status", string(status)),
		)
		return nil, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT product_variant_id, quantity FROM order_items WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	type line struct {
		variantID string
		quantity  int
	}
	var items []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.variantID, &l.quantity); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	restored := 0
	for _, l := range items {
		if err := r.ledger.Restore(ctx, tx, l.variantID, l.quantity,
			&id, stock.ActionOrderCanceled, "expired, unpaid"); err != nil {
			return nil, err
		}
		restored++
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'canceled', updated_at = NOW()
		WHERE order_id = $1 AND status IN ('pending', 'waiting_for_capture')
	`, id); err != nil {
		return nil, fmt.Errorf("failed to cancel open payments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'canceled', updated_at = NOW() WHERE id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	res := CanceledOrder{OrderID: id, RestoredItems: restored}
	if err := tx.QueryRowContext(ctx, `
		SELECT o.total_amount, c.full_name, c.email
		FROM orders o
		JOIN order_customers c ON c.order_id = o.id
		WHERE o.id = $1
	`, id).Scan(&res.TotalAmount, &res.CustomerName, &res.CustomerEmail); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("expired order canceled",
		zap.Int("restored_items", restored),
	)
	return &res, nil
}
