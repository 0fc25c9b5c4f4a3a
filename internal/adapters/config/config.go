package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"oracle/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Consensus     ConsensusConfig
	Workers       WorkerConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"oracle"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Host            string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

// AIConfig holds credentials and tuning for the five answer providers plus
// the extraction/formatting model.
type AIConfig struct {
	ExaKey        string `envconfig:"EXA_API_KEY" required:"true"`
	PerplexityKey string `envconfig:"PERPLEXITY_API_KEY" required:"true"`
	OpenAIKey     string `envconfig:"OPENAI_API_KEY" required:"true"`
	GrokKey       string `envconfig:"GROK_API_KEY" required:"true"`
	GeminiKey     string `envconfig:"GEMINI_API_KEY" required:"true"`

	GPTModel        string `envconfig:"GPT_MODEL" default:"gpt-4o"`
	ExtractionModel string `envconfig:"EXTRACTION_MODEL" default:"gpt-4o-mini"`
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	PerplexityModel string `envconfig:"PERPLEXITY_MODEL" default:"sonar"`
	GrokModel       string `envconfig:"GROK_MODEL" default:"grok-2-latest"`

	// ProviderTimeout bounds a single provider or extraction call so one hung
	// provider cannot block consensus computation.
	ProviderTimeout time.Duration `envconfig:"AI_PROVIDER_TIMEOUT" default:"60s"`

	RateLimitPerMinute float64 `envconfig:"AI_RATE_LIMIT_PER_MINUTE" default:"300"`
	RateLimitBurst     int     `envconfig:"AI_RATE_LIMIT_BURST" default:"30"`
}

// ConsensusConfig carries the fixed per-provider vote weights.
type ConsensusConfig struct {
	ExaWeight        float64 `envconfig:"CONSENSUS_WEIGHT_EXA" default:"1.0"`
	PerplexityWeight float64 `envconfig:"CONSENSUS_WEIGHT_PERPLEXITY" default:"1.0"`
	GPTWeight        float64 `envconfig:"CONSENSUS_WEIGHT_GPT" default:"1.0"`
	GrokWeight       float64 `envconfig:"CONSENSUS_WEIGHT_GROK" default:"1.0"`
	GeminiWeight     float64 `envconfig:"CONSENSUS_WEIGHT_GEMINI" default:"1.0"`
}

// WorkerConfig contains intervals for the background workers
type WorkerConfig struct {
	// How often the dispatcher polls the delay queue for due retries
	DispatchInterval time.Duration `envconfig:"WORKER_DISPATCH_INTERVAL" default:"15s"`

	// How often the reconciler rescues pending records whose due time passed
	// without a queue entry firing (lost after a Redis restart)
	ReconcileInterval time.Duration `envconfig:"WORKER_RECONCILE_INTERVAL" default:"5m"`

	// Grace period before a pending record is considered orphaned
	ReconcileGrace time.Duration `envconfig:"WORKER_RECONCILE_GRACE" default:"2m"`

	// Max retries dispatched per tick
	DispatchBatchSize int `envconfig:"WORKER_DISPATCH_BATCH_SIZE" default:"10"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
