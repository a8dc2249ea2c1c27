package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"minem-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type yookassaGateway struct {
	baseURL    string
	shopID     string
	secretKey  string
	httpClient *http.Client
	returnURL  string
}

// ----------------- Constructor -----------------

func NewYookassaGateway(baseURL, shopID, secretKey, returnURL string) Gateway {
	if shopID == "" || secretKey == "" {
		logger.L().Warn("YooKassa credentials are empty")
	}

	return &yookassaGateway{
		baseURL:   baseURL,
		shopID:    shopID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		returnURL: returnURL,
	}
}

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaPayment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Amount       yookassaAmount `json:"amount"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	CapturedAt *time.Time `json:"captured_at"`
}

// ----------------- CreatePayment -----------------

func (g *yookassaGateway) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.Float64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.returnURL + "/order/info?id=" + req.OrderID
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Order %s", req.OrderID)
	}

	body := map[string]interface{}{
		"amount": yookassaAmount{
			Value:    strconv.FormatFloat(req.Amount, 'f', 2, 64),
			Currency: req.Currency,
		},
		"payment_method_data": map[string]string{"type": "bank_card"},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"capture":     true,
		"description": description,
		"metadata": map[string]string{
			"order_id": req.OrderID,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v3/payments", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}

	httpReq.SetBasicAuth(g.shopID, g.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	// Provider-side dedup for retried create calls.
	httpReq.Header.Set("Idempotence-Key", uuid.New().String())

	log.Info("creating payment at provider")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("payment provider request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Error("payment provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("yookassa error: %s", string(bodyBytes))
	}

	var res yookassaPayment
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("failed decoding provider response", zap.Error(err))
		return nil, err
	}

	log.Info("payment created at provider",
		zap.String("provider_payment_id", res.ID),
		zap.String("status", res.Status),
	)

	return &CreatePaymentResult{
		ProviderPaymentID: res.ID,
		ConfirmationURL:   res.Confirmation.ConfirmationURL,
		Status:            res.Status,
	}, nil
}

// ----------------- GetPayment -----------------

func (g *yookassaGateway) GetPayment(ctx context.Context, providerPaymentID string) (*ProviderPayment, error) {
	log := logger.FromCtx(ctx).With(zap.String("provider_payment_id", providerPaymentID))

	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		g.baseURL+"/v3/payments/"+providerPaymentID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.shopID, g.secretKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("payment provider request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		log.Error("payment provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("yookassa error: %s", string(bodyBytes))
	}

	var res yookassaPayment
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseFloat(res.Amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in provider response: %w", err)
	}

	return &ProviderPayment{
		ID:     res.ID,
		Status: res.Status,
		Amount: amount,
		PaidAt: res.CapturedAt,
	}, nil
}
