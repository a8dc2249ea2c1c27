package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minem"

var (
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders successfully created.",
	})

	OrderCreationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "creation_failures_total",
		Help:      "Order creation attempts that failed, by reason.",
	}, []string{"reason"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "webhook_events_total",
		Help:      "Inbound payment webhook events, by type and outcome.",
	}, []string{"event_type", "result"})

	StockRestoredItems = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stock",
		Name:      "restored_items_total",
		Help:      "Order item positions restored to stock by compensation.",
	})

	ExpiredOrdersCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "expired_canceled_total",
		Help:      "Unpaid orders canceled by the expiry sweeper.",
	})

	PaymentOrderConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "order_conflicts_total",
		Help:      "Succeeded payments that arrived for an already canceled order.",
	})

	PaymentCreateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "create_duration_seconds",
		Help:      "Latency of payment intent creation at the provider.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		OrdersCreated,
		OrderCreationFailures,
		WebhookEvents,
		StockRestoredItems,
		ExpiredOrdersCanceled,
		PaymentOrderConflicts,
		PaymentCreateDuration,
	)
}
