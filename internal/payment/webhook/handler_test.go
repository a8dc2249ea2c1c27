package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"minem-be/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ProcessEvent(ctx context.Context, ev payment.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newTestHandler(t *testing.T, svc payment.Service) *Handler {
	t.Helper()
	h, err := NewHandler(svc, []string{"185.71.76.0/27", "10.0.0.0/8"})
	require.NoError(t, err)
	return h
}

func webhookRequest(body string, remoteAddr string) *http.Request {
	req := httptest.NewRequest("POST", "/webhook/payment", bytes.NewBufferString(body))
	req.RemoteAddr = remoteAddr
	return req
}

func TestHandler_HandleWebhook(t *testing.T) {
	validBody := `{"event": "payment.succeeded", "object": {"id": "pay-1", "status": "succeeded"}}`

	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)

		svc.On("ProcessEvent", mock.Anything, mock.MatchedBy(func(ev payment.Event) bool {
			return ev.ProviderPaymentID == "pay-1" && ev.Type == "payment.succeeded"
		})).Return(nil)

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(validBody, "185.71.76.5:44122"))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("UntrustedSource", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(validBody, "203.0.113.7:9999"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		svc.AssertNotCalled(t, "ProcessEvent")
	})

	t.Run("TrustedViaRealIPHeader", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)
		svc.On("ProcessEvent", mock.Anything, mock.Anything).Return(nil)

		req := webhookRequest(validBody, "127.0.0.1:1000")
		req.Header.Set("X-Real-IP", "10.1.2.3")
		w := httptest.NewRecorder()
		h.HandleWebhook(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(`{not json`, "10.0.0.1:1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ProcessEvent")
	})

	t.Run("MissingEventFields", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(`{"event": "", "object": {}}`, "10.0.0.1:1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("PaymentNotFound", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)
		svc.On("ProcessEvent", mock.Anything, mock.Anything).Return(payment.ErrPaymentNotFound)

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(validBody, "10.0.0.1:1"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("TransientFailure", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestHandler(t, svc)
		svc.On("ProcessEvent", mock.Anything, mock.Anything).Return(errors.New("db timeout"))

		w := httptest.NewRecorder()
		h.HandleWebhook(w, webhookRequest(validBody, "10.0.0.1:1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNewHandler_InvalidCIDR(t *testing.T) {
	_, err := NewHandler(new(MockPaymentService), []string{"not-a-cidr"})
	assert.Error(t, err)
}
