package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestYandexProvider_Estimate(t *testing.T) {
	p := NewYandexProvider("https://delivery.test/platform", "api-key", "wh-1").(*yandexProvider)

	req := EstimateRequest{
		Items: []Item{
			{Quantity: 2, Price: 100, Weight: 400},
			{Quantity: 1, Price: 50},
		},
		DestinationAddress: "Moscow, Tverskaya 1",
		Tariff:             TariffTimeInterval,
	}

	t.Run("Success", func(t *testing.T) {
		p.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "https://delivery.test/platform/pricing-calculator", r.URL.String())
			assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

			var body map[string]interface{}
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))

			// 2*400g + 1*500g default
			assert.Equal(t, float64(1300), body["total_weight"])
			// (2*100 + 50) in kopecks
			assert.Equal(t, float64(25000), body["total_assessed_price"])
			assert.Len(t, body["places"], 2)

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"pricing_total": "350.50 RUB", "delivery_days": 3}`)),
				Header:     make(http.Header),
			}
		})

		est, err := p.Estimate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 350.50, est.Cost)
		assert.Equal(t, 3, est.Days)
	})

	t.Run("ProviderError", func(t *testing.T) {
		p.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(bytes.NewBufferString(`{"message": "unknown address"}`)),
				Header:     make(http.Header),
			}
		})

		_, err := p.Estimate(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("NetworkError", func(t *testing.T) {
		p.httpClient.Transport = MockRoundTripperWithError(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := p.Estimate(context.Background(), req)
		assert.Error(t, err)
	})
}

func TestParsePricing(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"350.50 RUB", 350.50, false},
		{"0 RUB", 0, false},
		{"", 0, true},
		{"  ", 0, true},
		{"RUB", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePricing(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		assert.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
