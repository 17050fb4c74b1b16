package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string `env:"ELASTICSEARCH_ADDR" envDefault:"http://elasticsearch:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"references"`
}

// Worker holds configuration for the Kafka -> Elasticsearch ingest worker.
type Worker struct {
	Common
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envDefault:"kafka:9092" envSeparator:","`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"references_extracted"`
	KafkaConsumer  string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"references-worker"`
	DedupeCapacity int           `env:"WORKER_DEDUPE_CAPACITY" envDefault:"20000"`
	DedupeTTL      time.Duration `env:"WORKER_DEDUPE_TTL" envDefault:"24h"`
	BatchSize      int           `env:"WORKER_BATCH_SIZE" envDefault:"10"`
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr string `env:"API_BIND_ADDR" envDefault:"0.0.0.0:8080"`
	// PublicHost is the host[:port] readers reach the reference service on.
	// It is used both to fetch lists for rendered pages and in resolve links.
	PublicHost     string        `env:"API_PUBLIC_HOST" envDefault:"localhost:8080"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	FetchRateLimit float64       `env:"FETCH_RATE_LIMIT" envDefault:"20"`
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration `env:"RETENTION_CRON" envDefault:"24h"`
	MaxAge    time.Duration `env:"RETENTION_MAX_AGE" envDefault:"8760h"`
	BatchSize int           `env:"RETENTION_BATCH_SIZE" envDefault:"500"`
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{}
	if err := parse(c); err != nil {
		return nil, err
	}
	c.KafkaBrokers = trimAll(c.KafkaBrokers)

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{}
	if err := parse(c); err != nil {
		return nil, err
	}

	if strings.Contains(c.PublicHost, "://") {
		return nil, fmt.Errorf("API_PUBLIC_HOST must be host[:port] without a scheme")
	}
	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchRateLimit < 0 {
		return nil, fmt.Errorf("FETCH_RATE_LIMIT cannot be negative")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{}
	if err := parse(c); err != nil {
		return nil, err
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// parse fills target from the environment. Empty variables fall back to
// their defaults.
func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func trimAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
