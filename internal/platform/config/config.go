package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string

	// DBDriver selects the storage adapter: memory, sqlite or postgres.
	DBDriver    string
	PostgresDSN string
	SQLitePath  string

	WalletBaseURL string
	WalletTimeout time.Duration

	KafkaBrokers []string

	IdempotencyTTL  time.Duration
	ReminderWindow  time.Duration
	WorkerInterval  time.Duration
	WorkerBatchSize int

	EnablePayoutRetrier        bool
	EnableOverdueFlagger       bool
	EnableDueReminder          bool
	EnableOutboxRelay          bool
	EnableNotificationConsumer bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "ekub-engine"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("EKUB_DB")))
	if driver == "" {
		driver = "memory"
	}

	sqlitePath := os.Getenv("EKUB_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "data/ekub.db"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,

		DBDriver:    driver,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  sqlitePath,

		WalletBaseURL: os.Getenv("WALLET_BASE_URL"),
		WalletTimeout: envDuration("WALLET_TIMEOUT", 10*time.Second),

		KafkaBrokers: brokers,

		IdempotencyTTL:  envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour),
		ReminderWindow:  envDuration("REMINDER_WINDOW", 48*time.Hour),
		WorkerInterval:  envDuration("WORKER_INTERVAL", 30*time.Second),
		WorkerBatchSize: envInt("WORKER_BATCH_SIZE", 100),

		EnablePayoutRetrier:        envBool("ENABLE_PAYOUT_RETRIER", true),
		EnableOverdueFlagger:       envBool("ENABLE_OVERDUE_FLAGGER", true),
		EnableDueReminder:          envBool("ENABLE_DUE_REMINDER", true),
		EnableOutboxRelay:          envBool("ENABLE_OUTBOX_RELAY", true),
		EnableNotificationConsumer: envBool("ENABLE_NOTIFICATION_CONSUMER", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
