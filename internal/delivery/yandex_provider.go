package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"minem-be/internal/logger"

	"go.uber.org/zap"
)

type yandexProvider struct {
	baseURL     string
	apiKey      string
	warehouseID string
	httpClient  *http.Client
}

func NewYandexProvider(baseURL, apiKey, warehouseID string) Estimator {
	if apiKey == "" {
		logger.L().Warn("Yandex delivery API key is empty")
	}

	return &yandexProvider{
		baseURL:     baseURL,
		apiKey:      apiKey,
		warehouseID: warehouseID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type place struct {
	PhysicalDims physicalDims `json:"physical_dims"`
}

type physicalDims struct {
	WeightGross int `json:"weight_gross"`
	DX          int `json:"dx"`
	DY          int `json:"dy"`
	DZ          int `json:"dz"`
}

func (p *yandexProvider) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("destination", req.DestinationAddress),
		zap.String("tariff", req.Tariff),
		zap.Int("item_count", len(req.Items)),
	)

	body := map[string]interface{}{
		"source":               map[string]string{"platform_station_id": p.warehouseID},
		"destination":          map[string]string{"address": req.DestinationAddress},
		"tariff":               req.Tariff,
		"total_weight":         totalWeight(req.Items),
		"total_assessed_price": assessedPrice(req.Items),
		"client_price":         0,
		"payment_method":       "already_paid",
		"places":               buildPlaces(req.Items),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.baseURL+"/pricing-calculator", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		log.Error("delivery pricing request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("delivery provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("delivery pricing error: %s", string(bodyBytes))
	}

	var res struct {
		PricingTotal string `json:"pricing_total"`
		DeliveryDays int    `json:"delivery_days"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return nil, err
	}

	cost, err := parsePricing(res.PricingTotal)
	if err != nil {
		return nil, err
	}

	log.Info("delivery cost calculated",
		zap.Float64("cost", cost),
		zap.Int("days", res.DeliveryDays),
	)

	return &Estimate{Cost: cost, Days: res.DeliveryDays}, nil
}

// parsePricing handles the provider's "123.45 RUB" format. A missing or blank
// price is an error so callers fall back to the default cost.
func parsePricing(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty pricing value %q", s)
	}
	return strconv.ParseFloat(fields[0], 64)
}

func totalWeight(items []Item) int {
	total := 0
	for _, it := range items {
		w := it.Weight
		if w == 0 {
			w = defaultItemWeight
		}
		total += w * it.Quantity
	}
	return total
}

// assessedPrice converts the declared value to minor currency units.
func assessedPrice(items []Item) int {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return int(total * 100)
}

func buildPlaces(items []Item) []place {
	places := make([]place, 0, len(items))
	for _, it := range items {
		w, dx, dy, dz := it.Weight, it.DimensionLength, it.DimensionHeight, it.DimensionWidth
		if w == 0 {
			w = defaultItemWeight
		}
		if dx == 0 {
			dx = defaultDimLength
		}
		if dy == 0 {
			dy = defaultDimHeight
		}
		if dz == 0 {
			dz = defaultDimWidth
		}

		places = append(places, place{
			PhysicalDims: physicalDims{
				WeightGross: w * it.Quantity,
				DX:          dx,
				DY:          dy,
				DZ:          dz,
			},
		})
	}
	return places
}
