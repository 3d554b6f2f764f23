package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую. Пустое значение
	// означает публикацию событий только в лог.
	KafkaBrokers string

	Currency string

	DispatcherWorkers   int
	DispatcherQueueSize int

	ResolutionDelayMin time.Duration
	ResolutionDelayMax time.Duration

	SweepInterval        time.Duration
	ProcessingTimeout    time.Duration
	PendingEscalationTTL time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
}

// DefaultConfig возвращает настройки по умолчанию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		MetricsAddr:          ":9090",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		Currency:             "USD",
		DispatcherWorkers:    4,
		DispatcherQueueSize:  256,
		ResolutionDelayMin:   2 * time.Second,
		ResolutionDelayMax:   5 * time.Second,
		SweepInterval:        30 * time.Second,
		ProcessingTimeout:    2 * time.Minute,
		PendingEscalationTTL: 24 * time.Hour,
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     50 * time.Millisecond,
	}
}

// ReadConfig собирает конфигурацию: значения по умолчанию, затем .env файл,
// затем переменные окружения с префиксом SHOP_.
func ReadConfig() Config {
	// .env опционален: отсутствие файла не ошибка.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("SHOP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("SHOP_METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envString("SHOP_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("SHOP_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("SHOP_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.KafkaBrokers = envString("SHOP_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.Currency = envString("SHOP_CURRENCY", cfg.Currency)
	cfg.DispatcherWorkers = envInt("SHOP_DISPATCHER_WORKERS", cfg.DispatcherWorkers)
	cfg.DispatcherQueueSize = envInt("SHOP_DISPATCHER_QUEUE_SIZE", cfg.DispatcherQueueSize)
	cfg.ResolutionDelayMin = envDuration("SHOP_RESOLUTION_DELAY_MIN", cfg.ResolutionDelayMin)
	cfg.ResolutionDelayMax = envDuration("SHOP_RESOLUTION_DELAY_MAX", cfg.ResolutionDelayMax)
	cfg.SweepInterval = envDuration("SHOP_SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ProcessingTimeout = envDuration("SHOP_PROCESSING_TIMEOUT", cfg.ProcessingTimeout)
	cfg.PendingEscalationTTL = envDuration("SHOP_PENDING_ESCALATION_TTL", cfg.PendingEscalationTTL)
	cfg.OutboxPollInterval = envDuration("SHOP_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("SHOP_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("SHOP_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("SHOP_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
