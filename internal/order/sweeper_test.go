package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"minem-be/internal/notification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendOrderConfirmation(ctx context.Context, o notification.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockSender) SendOrderCanceled(ctx context.Context, o notification.Order, reason string) error {
	args := m.Called(ctx, o, reason)
	return args.Error(0)
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("CancelsExpiredOrders", func(t *testing.T) {
		repo := new(MockRepository)
		sender := new(MockSender)
		sw := NewSweeper(repo, sender)

		id := uuid.New()
		repo.On("FindExpired", ctx, mock.Anything).Return([]uuid.UUID{id}, nil)
		repo.On("CancelExpiredTx", ctx, id).Return(&CanceledOrder{
			OrderID:       id,
			CustomerName:  "Ivan Petrov",
			CustomerEmail: "ivan@example.com",
			TotalAmount:   450,
			RestoredItems: 1,
		}, nil)
		sender.On("SendOrderCanceled", ctx, mock.MatchedBy(func(o notification.Order) bool {
			return o.CustomerEmail == "ivan@example.com"
		}), "order expired before payment").Return(nil)

		res, err := sw.Sweep(ctx, 2*time.Hour, false)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Matched)
		assert.Equal(t, 1, res.Canceled)
		assert.Equal(t, 1, res.RestoredItems)
		assert.Equal(t, 0, res.Failed)
		repo.AssertExpectations(t)
		sender.AssertExpectations(t)
	})

	t.Run("DryRunMutatesNothing", func(t *testing.T) {
		repo := new(MockRepository)
		sender := new(MockSender)
		sw := NewSweeper(repo, sender)

		ids := []uuid.UUID{uuid.New(), uuid.New()}
		repo.On("FindExpired", ctx, mock.Anything).Return(ids, nil)

		res, err := sw.Sweep(ctx, 2*time.Hour, true)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Matched)
		assert.Equal(t, 0, res.Canceled)
		repo.AssertNotCalled(t, "CancelExpiredTx")
		sender.AssertNotCalled(t, "SendOrderCanceled")
	})

	t.Run("OneFailureDoesNotAbortTheRest", func(t *testing.T) {
		repo := new(MockRepository)
		sender := new(MockSender)
		sw := NewSweeper(repo, sender)

		bad, good := uuid.New(), uuid.New()
		repo.On("FindExpired", ctx, mock.Anything).Return([]uuid.UUID{bad, good}, nil)
		repo.On("CancelExpiredTx", ctx, bad).Return(nil, errors.New("deadlock"))
		repo.On("CancelExpiredTx", ctx, good).Return(&CanceledOrder{
			OrderID:       good,
			RestoredItems: 2,
		}, nil)
		sender.On("SendOrderCanceled", ctx, mock.Anything, mock.Anything).Return(nil)

		res, err := sw.Sweep(ctx, 2*time.Hour, false)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 1, res.Canceled)
		assert.Equal(t, 2, res.RestoredItems)
	})

	t.Run("RacingWebhookWinsQuietly", func(t *testing.T) {
		repo := new(MockRepository)
		sender := new(MockSender)
		sw := NewSweeper(repo, sender)

		id := uuid.New()
		repo.On("FindExpired", ctx, mock.Anything).Return([]uuid.UUID{id}, nil)
		repo.On("CancelExpiredTx", ctx, id).Return(nil, nil)

		res, err := sw.Sweep(ctx, 2*time.Hour, false)

		require.NoError(t, err)
		assert.Equal(t, 0, res.Canceled)
		assert.Equal(t, 0, res.Failed)
		sender.AssertNotCalled(t, "SendOrderCanceled")
	})

	t.Run("NotificationFailureLoggedOnly", func(t *testing.T) {
		repo := new(MockRepository)
		sender := new(MockSender)
		sw := NewSweeper(repo, sender)

		id := uuid.New()
		repo.On("FindExpired", ctx, mock.Anything).Return([]uuid.UUID{id}, nil)
		repo.On("CancelExpiredTx", ctx, id).Return(&CanceledOrder{OrderID: id, RestoredItems: 1}, nil)
		sender.On("SendOrderCanceled", ctx, mock.Anything, mock.Anything).
			Return(errors.New("smtp down"))

		res, err := sw.Sweep(ctx, 2*time.Hour, false)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Canceled)
	})
}
