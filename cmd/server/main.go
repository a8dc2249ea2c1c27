package main

import (
	"log"
	"net/http"

	"minem-be/internal/config"
	"minem-be/internal/db"
	"minem-be/internal/delivery"
	"minem-be/internal/logger"
	"minem-be/internal/middleware"
	"minem-be/internal/notification"
	"minem-be/internal/order"
	"minem-be/internal/payment"
	"minem-be/internal/payment/webhook"
	"minem-be/internal/stock"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	ledger := stock.NewLedger()

	gateway := payment.NewYookassaGateway(
		cfg.YookassaBaseURL, cfg.YookassaShopID, cfg.YookassaSecretKey, cfg.FrontendURL,
	)
	paymentRepo := payment.NewRepository(database, ledger)

	estimator := delivery.NewYandexProvider(
		cfg.YandexDeliveryBaseURL, cfg.YandexDeliveryAPIKey, cfg.YandexDeliveryWarehouseID,
	)
	deliverySvc := delivery.NewService(estimator, cfg.DefaultDeliveryCost)

	notifier := notification.NewEmailSender(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom,
	)

	orderRepo := order.NewRepository(database, ledger)
	orderSvc := order.NewService(orderRepo, paymentRepo, gateway, deliverySvc, cfg.PaymentTimeout)
	orderHandler := order.NewHandler(orderSvc)

	paymentSvc := payment.NewService(paymentRepo, notifier, cfg.WebhookRetryAttempts, cfg.WebhookRetryBackoff)
	webhookHandler, err := webhook.NewHandler(paymentSvc, cfg.TrustedWebhookCIDRs)
	if err != nil {
		log.Fatalf("invalid webhook configuration: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", orderHandler.CreateOrder)
	mux.HandleFunc("GET /orders/{id}", orderHandler.GetOrder)
	mux.HandleFunc("POST /orders/{id}/retry-payment", orderHandler.RetryPayment)
	mux.HandleFunc("POST /webhook/payment", webhookHandler.HandleWebhook)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := logger.RequestIDMiddleware(
		logger.LoggingMiddleware(
			middleware.RateLimitMiddleware(mux),
		),
	)

	logger.L().Info("server starting", zap.String("port", cfg.AppPort))
	if err := http.ListenAndServe(":"+cfg.AppPort, handler); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
