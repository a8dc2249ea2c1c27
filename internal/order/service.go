package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minem-be/internal/delivery"
	"minem-be/internal/logger"
	"minem-be/internal/metrics"
	"minem-be/internal/payment"
	"minem-be/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const currency = "RUB"

type Service interface {
	// CreateOrder reserves stock and persists the order in one transaction,
	// then creates a payment intent. ErrPaymentCreationFailed still returns
	// the committed order.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)

	// RetryPaymentCreation creates a payment intent for an awaiting_payment
	// order left without one. Idempotent: an order that already has a pending
	// payment is returned unchanged.
	RetryPaymentCreation(ctx context.Context, orderID uuid.UUID) (*Order, error)

	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
}

type service struct {
	repo           Repository
	paymentRepo    payment.Repository
	gateway        payment.Gateway
	delivery       *delivery.Service
	paymentTimeout time.Duration
}

func NewService(
	repo Repository,
	paymentRepo payment.Repository,
	gateway payment.Gateway,
	deliverySvc *delivery.Service,
	paymentTimeout time.Duration,
) Service {
	return &service{
		repo:           repo,
		paymentRepo:    paymentRepo,
		gateway:        gateway,
		delivery:       deliverySvc,
		paymentTimeout: paymentTimeout,
	}
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.Int("item_count", len(input.Items)),
	)

	// 1. Validate before touching anything.
	if err := validateInput(input); err != nil {
		metrics.OrderCreationFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	// 2. Delivery estimate runs before the transaction so no external call
	// ever happens under a row lock. Failures fall back to the default cost.
	deliveryCost := s.estimateDelivery(ctx, input)

	// 3. Reservation transaction.
	o := &Order{
		ID:           uuid.New(),
		Status:       StatusAwaitingPayment,
		DeliveryCost: deliveryCost,
		Customer:     input.Customer,
	}
	for _, it := range input.Items {
		o.Items = append(o.Items, OrderItem{VariantID: it.VariantID, Quantity: it.Quantity})
	}

	log = log.With(zap.String("order_id", o.ID.String()))

	if err := s.repo.CreateOrderTx(ctx, o); err != nil {
		metrics.OrderCreationFailures.WithLabelValues(creationFailureReason(err)).Inc()
		log.Warn("order creation failed", zap.Error(err))
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	log.Info("order created",
		zap.Float64("total_amount", o.TotalAmount),
		zap.Float64("delivery_cost", o.DeliveryCost),
	)

	// 4. Payment intent, after commit. The order stays valid if this fails.
	if err := s.createPaymentIntent(ctx, o, input.ReturnURL); err != nil {
		metrics.OrderCreationFailures.WithLabelValues("payment").Inc()
		log.Error("payment creation failed for committed order", zap.Error(err))
		return o, fmt.Errorf("%w: %v", ErrPaymentCreationFailed, err)
	}

	return o, nil
}

func (s *service) RetryPaymentCreation(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID.String()))

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusAwaitingPayment {
		return nil, fmt.Errorf("order %s in status %s: %w", orderID, o.Status, ErrOrderNotPayable)
	}

	_, err = s.paymentRepo.GetPendingByOrder(ctx, orderID)
	switch {
	case err == nil:
		// An intent already exists, nothing to do.
		log.Info("pending payment already exists, skipping")
		return o, nil
	case errors.Is(err, payment.ErrPaymentNotFound):
	default:
		return nil, err
	}

	if err := s.createPaymentIntent(ctx, o, ""); err != nil {
		log.Error("payment creation retry failed", zap.Error(err))
		return o, fmt.Errorf("%w: %v", ErrPaymentCreationFailed, err)
	}

	log.Info("payment created on retry")
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *service) createPaymentIntent(ctx context.Context, o *Order, returnURL string) error {
	ctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.gateway.CreatePayment(ctx, payment.CreatePaymentRequest{
		Amount:        o.TotalAmount,
		Currency:      currency,
		OrderID:       o.ID.String(),
		ReturnURL:     returnURL,
		CustomerEmail: o.Customer.Email,
	})
	metrics.PaymentCreateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	p := &payment.Payment{
		OrderID:           o.ID,
		Provider:          payment.ProviderYookassa,
		ProviderPaymentID: res.ProviderPaymentID,
		Amount:            o.TotalAmount,
		Status:            payment.StatusPending,
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		if errors.Is(err, payment.ErrPendingPaymentExists) {
			// A concurrent retry won the race; its intent is the live one.
			logger.FromCtx(ctx).Info("pending payment created concurrently, skipping",
				zap.String("order_id", o.ID.String()),
			)
			return nil
		}
		return err
	}

	if err := s.repo.SetPaymentURL(ctx, o.ID, res.ConfirmationURL); err != nil {
		return err
	}
	o.PaymentURL = &res.ConfirmationURL

	return nil
}

// estimateDelivery builds the carrier request from a non-locking variant read.
// An empty shipping address means self-pickup, which costs nothing.
func (s *service) estimateDelivery(ctx context.Context, input CreateOrderInput) float64 {
	if input.Customer.ShippingAddress == "" {
		return 0
	}

	ids := make([]string, 0, len(input.Items))
	for _, it := range input.Items {
		ids = append(ids, it.VariantID)
	}

	variants, err := s.repo.GetVariants(ctx, ids)
	if err != nil {
		logger.FromCtx(ctx).Warn("variant read for delivery estimate failed", zap.Error(err))
		variants = nil
	}

	req := delivery.EstimateRequest{
		DestinationAddress: input.Customer.ShippingAddress,
		Tariff:             delivery.TariffTimeInterval,
	}
	for _, it := range input.Items {
		item := delivery.Item{Quantity: it.Quantity}
		if v, ok := variants[it.VariantID]; ok {
			item.Price = v.Price
			item.Weight = v.Weight
			item.DimensionLength = v.DimensionLength
			item.DimensionWidth = v.DimensionWidth
			item.DimensionHeight = v.DimensionHeight
		}
		req.Items = append(req.Items, item)
	}

	return s.delivery.CalculateDeliveryCost(ctx, req)
}

func validateInput(input CreateOrderInput) error {
	if len(input.Items) == 0 {
		return ErrNoItems
	}
	if len(input.Items) > maxOrderItems {
		return fmt.Errorf("%d items: %w", len(input.Items), ErrTooManyItems)
	}

	seen := make(map[string]struct{}, len(input.Items))
	for _, it := range input.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("variant %s: %w", it.VariantID, ErrInvalidQuantity)
		}
		if _, dup := seen[it.VariantID]; dup {
			return fmt.Errorf("variant %s: %w", it.VariantID, ErrDuplicateVariant)
		}
		seen[it.VariantID] = struct{}{}
	}

	if input.Customer.FullName == "" || input.Customer.Email == "" {
		return ErrInvalidCustomer
	}
	return nil
}

func creationFailureReason(err error) string {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, stock.ErrVariantUnavailable), errors.Is(err, stock.ErrVariantNotFound):
		return "unavailable"
	default:
		return "storage"
	}
}
