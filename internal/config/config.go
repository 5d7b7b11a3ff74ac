package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RabbitURL   string

	StripeAPIKey        string
	StripeWebhookSecret string
	StripeBaseURL       string
	GatewayTimeout      time.Duration

	ResendAPIKey string
	EmailFrom    string

	RateLimitQuota  int
	RateLimitWindow time.Duration
	RateLimitBlock  time.Duration

	IdempotencyTTL time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		MongoURI:    os.Getenv("MONGO_URI"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RabbitURL:   os.Getenv("RABBIT_URL"),

		StripeAPIKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeBaseURL:       envOr("STRIPE_BASE_URL", "https://api.stripe.com"),
		GatewayTimeout:      durationOr("GATEWAY_TIMEOUT", 10*time.Second),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    envOr("EMAIL_FROM", "bookings@aitraveller.example"),

		RateLimitQuota:  intOr("RATE_LIMIT_QUOTA", 30),
		RateLimitWindow: durationOr("RATE_LIMIT_WINDOW", time.Hour),
		RateLimitBlock:  durationOr("RATE_LIMIT_BLOCK", 10*time.Minute),

		IdempotencyTTL: durationOr("IDEMPOTENCY_TTL", time.Hour),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d == 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
