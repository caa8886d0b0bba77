package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string

	// Mail transport: "smtp" (default), "brevo" or "resend"
	MailProvider string
	MailAPIKey   string

	// SMTP settings for the notification mailer
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	// System contact used when sender resolution finds nobody
	SupportName  string
	SupportEmail string

	// Sweep / worker tuning
	SweepInterval     time.Duration
	SweepPageSize     int
	DeliveryBatchSize int
	WorkerConcurrency int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          os.Getenv("PORT"),
		Env:           os.Getenv("ENV"),
		MailProvider:  os.Getenv("MAIL_PROVIDER"),
		MailAPIKey:    os.Getenv("MAIL_API_KEY"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  os.Getenv("SMTP_FROM_NAME"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		SupportName:   os.Getenv("SUPPORT_NAME"),
		SupportEmail:  os.Getenv("SUPPORT_EMAIL"),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.SupportName == "" {
		cfg.SupportName = "CoursePulse Support"
	}

	cfg.SMTPPort = envInt("SMTP_PORT", 587)
	cfg.SweepPageSize = envInt("SWEEP_PAGE_SIZE", 100)
	cfg.DeliveryBatchSize = envInt("DELIVERY_BATCH_SIZE", 50)
	cfg.WorkerConcurrency = envInt("WORKER_CONCURRENCY", 5)
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_MINUTES", 15)) * time.Minute

	return cfg
}

// envInt reads an integer env var, falling back to def when unset or invalid
func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return n
}
