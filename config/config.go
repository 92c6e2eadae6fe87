package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	PostgresUser           string
	PostgresPassword       string
	PostgresDB             string
	PostgresHost           string
	PostgresPort           string
	PostgresSSLMode        string
	StripeSecretKey        string
	StripeWebhookKey       string
	SMTPHost               string
	SMTPPort               string
	SMTPUser               string
	SMTPPass               string
	EmailFrom              string
	CatalogPath            string
	FulfillmentSNSTopicARN string // optional; events are skipped when empty
}

func LoadConfig() (*Config, error) {
	// .env is optional; system environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8090"),
		PostgresUser:           os.Getenv("POSTGRES_USER"),
		PostgresPassword:       os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:             os.Getenv("POSTGRES_DB"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		StripeSecretKey:        os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SMTPHost:               os.Getenv("SMTP_HOST"),
		SMTPPort:               getEnv("SMTP_PORT", "587"),
		SMTPUser:               os.Getenv("SMTP_USER"),
		SMTPPass:               os.Getenv("SMTP_PASS"),
		EmailFrom:              os.Getenv("EMAIL_FROM"),
		CatalogPath:            os.Getenv("CATALOG_PATH"),
		FulfillmentSNSTopicARN: os.Getenv("FULFILLMENT_SNS_TOPIC_ARN"),
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.SMTPUser
	}

	required := map[string]string{
		"POSTGRES_USER":         cfg.PostgresUser,
		"POSTGRES_PASSWORD":     cfg.PostgresPassword,
		"POSTGRES_DB":           cfg.PostgresDB,
		"STRIPE_API_KEY":        cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookKey,
		"SMTP_HOST":             cfg.SMTPHost,
		"SMTP_USER":             cfg.SMTPUser,
		"SMTP_PASS":             cfg.SMTPPass,
		"CATALOG_PATH":          cfg.CatalogPath,
	}
	for name, val := range required {
		if val == "" {
			return nil, fmt.Errorf("missing required environment variable %s", name)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
