package configs

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs. It is loaded once at startup
// and passed by value; nothing reads the environment after Load returns.
type Config struct {
	Port     string
	MongoURI string
	DBName   string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	JWTSecret string

	// PaymentMockMode relaxes signature checks and provider calls for
	// deployments without live Razorpay credentials.
	PaymentMockMode bool
}

func Load() (Config, error) {
	// .env is optional; real deployments inject environment variables.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment directly")
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8000"),
		MongoURI:              os.Getenv("MONGOURI"),
		DBName:                getEnv("DB_NAME", "trippydrip"),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", "mock_webhook_secret"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
	}

	if cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGOURI is required")
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		cfg.PaymentMockMode = true
		log.Println("Razorpay credentials missing, running payments in mock mode")
	}
	if os.Getenv("PAYMENT_MOCK_MODE") == "true" {
		cfg.PaymentMockMode = true
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
