package payment

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrPendingPaymentExists means the order already has an open intent;
	// the partial unique index on payments(order_id) enforces this.
	ErrPendingPaymentExists = errors.New("pending payment already exists for order")
)

// Postgres error codes that signal transient lock/serialization contention.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

const pendingPaymentIndex = "idx_payments_order_pending"

// isPendingConflict reports whether the error is the partial unique index
// rejecting a second open intent for the same order.
func isPendingConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pgUniqueViolation && pqErr.Constraint == pendingPaymentIndex
}

// isStorageBusy reports whether the error is a transient storage contention
// condition worth retrying, as opposed to a business failure.
func isStorageBusy(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	return false
}
