package stock

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "sku", "price", "stock", "is_active",
		"weight", "dimension_length", "dimension_width", "dimension_height",
	})
}

func TestLedger_LockVariants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewLedger()
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	ids := []string{"v-1", "v-2"}
	rows := variantRows().
		AddRow("v-1", "SKU-1", 100.0, 5, true, 500, 30, 20, 10).
		AddRow("v-2", "SKU-2", 80.0, 0, false, 500, 30, 20, 10)

	mock.ExpectQuery(`SELECT id, sku, price, stock, is_active,.* FROM product_variants WHERE id = ANY\(\$1\) FOR UPDATE`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)

	variants, err := l.LockVariants(ctx, tx, ids)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, 5, variants["v-1"].Stock)
	assert.True(t, variants["v-1"].IsActive)
	assert.False(t, variants["v-2"].IsActive)
}

func TestLedger_Reserve(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		v := &Variant{ID: "v-1", Price: 100, Stock: 5, IsActive: true}

		mock.ExpectExec(`UPDATE product_variants SET stock = \$1, updated_at = NOW\(\) WHERE id = \$2`).
			WithArgs(3, "v-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`INSERT INTO stock_history`).
			WithArgs("v-1", orderID.String(), ActionOrderCreated, -2, 5, 3, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = l.Reserve(ctx, tx, v, 2, orderID)
		assert.NoError(t, err)
		assert.Equal(t, 3, v.Stock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientStock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		v := &Variant{ID: "v-1", Price: 100, Stock: 1, IsActive: true}

		err = l.Reserve(ctx, tx, v, 4, orderID)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Contains(t, err.Error(), "v-1")
		assert.Equal(t, 1, v.Stock, "stock must not change on failure")
	})

	t.Run("InactiveVariant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		v := &Variant{ID: "v-2", Price: 100, Stock: 10, IsActive: false}

		err = l.Reserve(ctx, tx, v, 1, orderID)
		assert.ErrorIs(t, err, ErrVariantUnavailable)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		v := &Variant{ID: "v-1", Stock: 5, IsActive: true}
		err = l.Reserve(ctx, tx, v, 0, orderID)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("SequentialReservesSeeEachOther", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		v := &Variant{ID: "v-1", Stock: 3, IsActive: true}

		mock.ExpectExec(`UPDATE product_variants`).
			WithArgs(1, "v-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO stock_history`).
			WithArgs("v-1", orderID.String(), ActionOrderCreated, -2, 3, 1, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, l.Reserve(ctx, tx, v, 2, orderID))

		// Second reserve exceeds the remaining unit.
		err = l.Reserve(ctx, tx, v, 2, orderID)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})
}

func TestLedger_Restore(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT stock FROM product_variants WHERE id = \$1 FOR UPDATE`).
			WithArgs("v-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))

		mock.ExpectExec(`UPDATE product_variants SET stock = \$1, updated_at = NOW\(\) WHERE id = \$2`).
			WithArgs(5, "v-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`INSERT INTO stock_history`).
			WithArgs("v-1", orderID.String(), ActionOrderCanceled, 4, 1, 5, "expired, unpaid").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = l.Restore(ctx, tx, "v-1", 4, &orderID, ActionOrderCanceled, "expired, unpaid")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("VariantNotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT stock FROM product_variants`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}))

		err = l.Restore(ctx, tx, "missing", 1, nil, ActionOrderCanceled, "note")
		assert.ErrorIs(t, err, ErrVariantNotFound)
	})
}

func TestLedger_Adjust(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	t.Run("Restock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT stock FROM product_variants`).
			WithArgs("v-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))

		mock.ExpectExec(`UPDATE product_variants`).
			WithArgs(12, "v-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`INSERT INTO stock_history`).
			WithArgs("v-1", nil, ActionRestock, 10, 2, 12, "supplier delivery").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = l.Adjust(ctx, tx, "v-1", 10, ActionRestock, "supplier delivery")
		assert.NoError(t, err)
	})

	t.Run("NegativeBeyondStock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT stock FROM product_variants`).
			WithArgs("v-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))

		err = l.Adjust(ctx, tx, "v-1", -5, ActionManualAdjustment, "write-off")
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})
}
