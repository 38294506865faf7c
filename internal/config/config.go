package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Mail providers accepted by MAIL_PROVIDER.
const (
	MailProviderSMTP    = "smtp"
	MailProviderSES     = "ses"
	MailProviderWebhook = "webhook"
)

// Config holds all runtime configuration loaded from environment variables.
// It is read once at startup and passed by pointer to constructors; nothing
// mutates it afterwards. Only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Database
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns     int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`

	// Kafka consumer
	KafkaBrokers        []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic          string   `envconfig:"KAFKA_TOPIC" default:"notification-events"`
	KafkaGroupID        string   `envconfig:"KAFKA_GROUP_ID" default:"notification-service-group"`
	ConsumerConcurrency int      `envconfig:"CONSUMER_CONCURRENCY" default:"3"`
	ConsumerQueueSize   int      `envconfig:"CONSUMER_QUEUE_SIZE" default:"100"`
	ConsumerEnabled     bool     `envconfig:"CONSUMER_ENABLED" default:"true"`

	// Mail transport
	MailProvider    string        `envconfig:"MAIL_PROVIDER" default:"smtp"`
	MailFrom        string        `envconfig:"MAIL_FROM" default:"noreply@bidconnect.com"`
	TransmitTimeout time.Duration `envconfig:"TRANSMIT_TIMEOUT" default:"10s"`
	MailRateLimit   int           `envconfig:"MAIL_RATE_LIMIT" default:"50"`

	SMTPHost       string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
	SMTPEncryption string `envconfig:"SMTP_ENCRYPTION" default:"starttls"` // none, starttls, ssl_tls

	SESRegion string `envconfig:"SES_REGION" default:"us-east-1"`

	WebhookURL string `envconfig:"WEBHOOK_URL"`

	// Idempotency guard; disabled when RedisAddr is empty. A claim lives for
	// IdempotencyPendingTTL until its record reaches a terminal status.
	RedisAddr             string        `envconfig:"REDIS_ADDR"`
	RedisPassword         string        `envconfig:"REDIS_PASSWORD"`
	RedisDB               int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL        time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"168h"`
	IdempotencyPendingTTL time.Duration `envconfig:"IDEMPOTENCY_PENDING_TTL" default:"2m"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogFile   string `envconfig:"LOG_FILE"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.MailProvider = strings.ToLower(strings.TrimSpace(c.MailProvider))
	switch c.MailProvider {
	case MailProviderSMTP, MailProviderSES:
	case MailProviderWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when MAIL_PROVIDER=webhook")
		}
	default:
		return fmt.Errorf("MAIL_PROVIDER must be smtp, ses or webhook, got %q", c.MailProvider)
	}
	if c.ConsumerConcurrency < 1 {
		return fmt.Errorf("CONSUMER_CONCURRENCY must be at least 1")
	}
	if c.ConsumerQueueSize < 1 {
		return fmt.Errorf("CONSUMER_QUEUE_SIZE must be at least 1")
	}
	if c.MailRateLimit < 1 {
		return fmt.Errorf("MAIL_RATE_LIMIT must be at least 1")
	}
	// A manual send blocks for up to one transmit; the response must still fit.
	if c.WriteTimeout > 0 && c.WriteTimeout <= c.TransmitTimeout {
		return fmt.Errorf("WRITE_TIMEOUT (%s) must exceed TRANSMIT_TIMEOUT (%s)", c.WriteTimeout, c.TransmitTimeout)
	}
	if c.IdempotencyPendingTTL <= c.TransmitTimeout {
		return fmt.Errorf("IDEMPOTENCY_PENDING_TTL (%s) must exceed TRANSMIT_TIMEOUT (%s)", c.IdempotencyPendingTTL, c.TransmitTimeout)
	}
	return nil
}
