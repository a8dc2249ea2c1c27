package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	YookassaShopID    string
	YookassaSecretKey string
	YookassaBaseURL   string

	YandexDeliveryBaseURL     string
	YandexDeliveryAPIKey      string
	YandexDeliveryWarehouseID string
	DefaultDeliveryCost       float64

	FrontendURL string

	// CIDR ranges the payment provider sends webhook notifications from.
	TrustedWebhookCIDRs []string

	OrderTTL       time.Duration
	PaymentTimeout time.Duration

	WebhookRetryAttempts int
	WebhookRetryBackoff  time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
}

// Published notification source ranges of the payment provider.
var defaultTrustedCIDRs = []string{
	"185.71.76.0/27",
	"185.71.77.0/27",
	"77.75.153.0/25",
	"77.75.156.11/32",
	"77.75.156.35/32",
	"77.75.154.128/25",
	"2a02:5180::/32",
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		YookassaShopID:    os.Getenv("YOOKASSA_SHOP_ID"),
		YookassaSecretKey: os.Getenv("YOOKASSA_SECRET_KEY"),
		YookassaBaseURL:   envOr("YOOKASSA_BASE_URL", "https://api.yookassa.ru"),

		YandexDeliveryBaseURL:     envOr("YANDEX_DELIVERY_BASE_URL", "https://b2b.taxi.yandex.net/api/b2b/platform"),
		YandexDeliveryAPIKey:      os.Getenv("YANDEX_DELIVERY_API_KEY"),
		YandexDeliveryWarehouseID: os.Getenv("YANDEX_DELIVERY_WAREHOUSE_ID"),
		DefaultDeliveryCost:       envFloat("DEFAULT_DELIVERY_COST", 500),

		FrontendURL: os.Getenv("FRONTEND_URL"),

		TrustedWebhookCIDRs: envList("TRUSTED_WEBHOOK_CIDRS", defaultTrustedCIDRs),

		OrderTTL:       envDuration("ORDER_TTL", 2*time.Hour),
		PaymentTimeout: envDuration("PAYMENT_TIMEOUT", 30*time.Second),

		WebhookRetryAttempts: envInt("WEBHOOK_RETRY_ATTEMPTS", 3),
		WebhookRetryBackoff:  envDuration("WEBHOOK_RETRY_BACKOFF", 100*time.Millisecond),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envOr("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
