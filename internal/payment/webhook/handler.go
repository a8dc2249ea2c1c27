package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"minem-be/internal/logger"
	"minem-be/internal/metrics"
	"minem-be/internal/payment"

	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// notificationBody is the JSON shape the provider delivers:
// {"event": "payment.succeeded", "object": {"id": "..."}}.
type notificationBody struct {
	Event  string `json:"event"`
	Object struct {
		ID string `json:"id"`
	} `json:"object"`
}

// Handler receives provider webhook calls, enforces the source-IP allow-list
// and maps reconciliation outcomes to the status codes that steer provider
// redelivery (4xx = do not retry, 5xx = retry).
type Handler struct {
	svc     payment.Service
	trusted []*net.IPNet
}

func NewHandler(svc payment.Service, trustedCIDRs []string) (*Handler, error) {
	nets := make([]*net.IPNet, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted CIDR %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	return &Handler{svc: svc, trusted: nets}, nil
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	ip := clientIP(r)
	if !h.trustedSource(ip) {
		log.Warn("webhook from untrusted source rejected",
			zap.String("ip", ip.String()),
		)
		metrics.WebhookEvents.WithLabelValues("unknown", "forbidden").Inc()
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var n notificationBody
	if err := json.Unmarshal(body, &n); err != nil || n.Event == "" || n.Object.ID == "" {
		log.Warn("malformed webhook payload", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("event_type", n.Event),
		zap.String("provider_payment_id", n.Object.ID),
	)
	log.Info("webhook received")

	err = h.svc.ProcessEvent(r.Context(), payment.Event{
		ProviderPaymentID: n.Object.ID,
		Type:              n.Event,
		Payload:           body,
	})

	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues(n.Event, "ok").Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")

	case errors.Is(err, payment.ErrPaymentNotFound):
		// Terminal: this payment was never created here, redelivery is useless.
		log.Error("webhook for unknown payment")
		metrics.WebhookEvents.WithLabelValues(n.Event, "not_found").Inc()
		http.Error(w, "payment not found", http.StatusNotFound)

	default:
		// Transient failure: the provider should redeliver.
		log.Error("webhook processing failed", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(n.Event, "error").Inc()
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

func (h *Handler) trustedSource(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range h.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) net.IP {
	if v := r.Header.Get("X-Real-IP"); v != "" {
		if ip := net.ParseIP(v); ip != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
