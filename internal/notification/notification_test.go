package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEmailSender_EmptyHostFallsBackToNop(t *testing.T) {
	s := NewEmailSender("", "587", "", "", "shop@example.com")
	assert.IsType(t, NopSender{}, s)

	assert.NoError(t, s.SendOrderConfirmation(context.Background(), Order{ID: "o-1"}))
	assert.NoError(t, s.SendOrderCanceled(context.Background(), Order{ID: "o-1"}, "expired"))
}

func TestEmailSender_RejectsEmptyRecipient(t *testing.T) {
	s := NewEmailSender("smtp.example.com", "587", "user", "pass", "shop@example.com")

	err := s.SendOrderConfirmation(context.Background(), Order{ID: "o-1", CustomerName: "Ivan"})
	assert.Error(t, err)
}

func TestShortOrderID(t *testing.T) {
	assert.Equal(t, "e5f6a7b8", shortOrderID("e5f6a7b8-0000-0000-0000-000000000001"))
	assert.Equal(t, "short", shortOrderID("short"))
}
