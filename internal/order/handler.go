package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"minem-be/internal/logger"
	"minem-be/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type createOrderRequest struct {
	Items []struct {
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Customer struct {
		FullName        string `json:"full_name"`
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		ShippingAddress string `json:"shipping_address"`
		Comment         string `json:"comment"`
	} `json:"customer"`
	ReturnURL string `json:"return_url"`
}

type orderItemResponse struct {
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	TotalAmount  float64             `json:"total_amount"`
	DeliveryCost float64             `json:"delivery_cost"`
	PaymentURL   *string             `json:"payment_url"`
	Items        []orderItemResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	input := CreateOrderInput{
		Customer: CustomerInfo{
			FullName:        req.Customer.FullName,
			Email:           req.Customer.Email,
			Phone:           req.Customer.Phone,
			ShippingAddress: req.Customer.ShippingAddress,
			Comment:         req.Customer.Comment,
		},
		ReturnURL: req.ReturnURL,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, RequestedItem{VariantID: it.VariantID, Quantity: it.Quantity})
	}

	o, err := h.svc.CreateOrder(r.Context(), input)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toOrderResponse(o))

	case errors.Is(err, ErrPaymentCreationFailed):
		// The order and its reservation are committed; the client retries
		// payment creation via the dedicated endpoint.
		writeJSON(w, http.StatusBadGateway, struct {
			errorResponse
			OrderID string `json:"order_id"`
		}{errorResponse{Error: "payment_creation_failed"}, o.ID.String()})

	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, stock.ErrVariantUnavailable),
		errors.Is(err, stock.ErrVariantNotFound):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	default:
		logger.FromCtx(r.Context()).Error("order creation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toOrderResponse(o))
	case errors.Is(err, ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	default:
		logger.FromCtx(r.Context()).Error("failed to load order", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	o, err := h.svc.RetryPaymentCreation(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toOrderResponse(o))
	case errors.Is(err, ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	case errors.Is(err, ErrOrderNotPayable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrPaymentCreationFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment_creation_failed"})
	default:
		logger.FromCtx(r.Context()).Error("payment retry failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func toOrderResponse(o *Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID.String(),
		Status:       string(o.Status),
		TotalAmount:  o.TotalAmount,
		DeliveryCost: o.DeliveryCost,
		PaymentURL:   o.PaymentURL,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return resp
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrTooManyItems) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrDuplicateVariant) ||
		errors.Is(err, ErrInvalidCustomer)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
