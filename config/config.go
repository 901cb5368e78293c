package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"settlement/database"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string `env:"DISCORD_TOKEN"`
	GuildID      string `env:"GUILD_ID"` // Guild used for slash command registration, empty for global

	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Account defaults
	StartingBalance    int64 `env:"STARTING_BALANCE" envDefault:"10000"`
	DefaultCreditLimit int64 `env:"DEFAULT_CREDIT_LIMIT" envDefault:"50000"`

	// Deferred transfer rules (basis points)
	PostalFeeBps       int64 `env:"POSTAL_FEE_BPS" envDefault:"500"`
	InvestmentYieldBps int64 `env:"INVESTMENT_YIELD_BPS" envDefault:"300"`

	// Event bus configuration
	EventBackend string   `env:"EVENT_BACKEND" envDefault:"nats"` // nats, kafka or none
	NATSServers  string   `env:"NATS_SERVERS" envDefault:"nats://nats:4222"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"kafka:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"settlement-events"`

	// Idempotency configuration
	RedisURL       string        `env:"REDIS_URL"` // Optional cache in front of the key table
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"15m"`

	// Intent handling
	IntentTimeout time.Duration `env:"INTENT_TIMEOUT" envDefault:"10s"`
	PromptTimeout time.Duration `env:"PROMPT_TIMEOUT" envDefault:"60s"`

	// Workers
	SessionTick    time.Duration `env:"SESSION_TICK" envDefault:"2s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"2m"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`

	// Operational endpoints
	OpsAddr        string `env:"OPS_ADDR" envDefault:":9102"`
	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR" envDefault:":9103"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelServiceName          string `env:"OTEL_SERVICE_NAME" envDefault:"settlement"`
	OTelExporterType         string `env:"OTEL_EXPORTER_TYPE" envDefault:"none"` // console, otlp or none
	OTelOTLPEndpoint         string `env:"OTEL_OTLP_ENDPOINT" envDefault:"otel-collector:4317"`
	OTelExportIntervalMillis int    `env:"OTEL_EXPORT_INTERVAL_MS" envDefault:"15000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text or json

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.Environment != "test" {
		if err := config.validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// validate checks required configuration outside of tests
func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	switch c.EventBackend {
	case "nats", "kafka", "none":
	default:
		return fmt.Errorf("unknown EVENT_BACKEND: %s", c.EventBackend)
	}
	if c.PostalFeeBps < 0 || c.InvestmentYieldBps < 0 {
		return fmt.Errorf("basis point settings cannot be negative")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		StartingBalance:    10000,
		DefaultCreditLimit: 50000,
		PostalFeeBps:       500,
		InvestmentYieldBps: 300,
		EventBackend:       "none",
		IdempotencyTTL:     15 * time.Minute,
		IntentTimeout:      10 * time.Second,
		PromptTimeout:      60 * time.Second,
		SessionTick:        2 * time.Second,
		SweepInterval:      2 * time.Minute,
		SweepBatchSize:     100,
		LogLevel:           "debug",
		LogFormat:          "text",
	}
}
