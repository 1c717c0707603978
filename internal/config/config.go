package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Queue and store backends.
const (
	BackendMemory   = "memory"
	BackendKafka    = "kafka"
	BackendPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Job queue.
	QueueBackend      string
	QueueCapacity     int
	KafkaBrokers      []string
	KafkaRequestTopic string
	KafkaResultTopic  string
	KafkaGroupID      string
	BatchSize         int

	// Job store.
	StoreBackend string
	PostgresURL  string
	JobTTL       time.Duration

	// SimulatedLatency delays each job to mimic a remote processing backend.
	SimulatedLatency time.Duration

	// Mapbox reverse geocoding for detection locations.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	jobTTL, err := parsePositiveDuration("JOB_TTL", "1h")
	if err != nil {
		return nil, err
	}

	latency, err := time.ParseDuration(sharedcfg.EnvOrDefault("SIMULATED_LATENCY", "0s"))
	if err != nil || latency < 0 {
		return nil, errors.New("invalid SIMULATED_LATENCY")
	}

	queueCapacity, err := parsePositiveInt("QUEUE_CAPACITY", 256)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		QueueBackend:      sharedcfg.EnvOrDefault("QUEUE_BACKEND", BackendMemory),
		QueueCapacity:     queueCapacity,
		KafkaBrokers:      parseBrokers(),
		KafkaRequestTopic: sharedcfg.EnvOrDefault("KAFKA_REQUEST_TOPIC", "fire-detection-requests"),
		KafkaResultTopic:  os.Getenv("KAFKA_RESULT_TOPIC"),
		KafkaGroupID:      sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "fire-detection"),
		BatchSize:         batchSize,

		StoreBackend: sharedcfg.EnvOrDefault("STORE_BACKEND", BackendMemory),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		JobTTL:       jobTTL,

		SimulatedLatency: latency,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.QueueBackend {
	case BackendMemory:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("QUEUE_BACKEND is kafka but KAFKA_BROKERS is not set")
		}
		if c.KafkaRequestTopic == "" {
			return errors.New("KAFKA_REQUEST_TOPIC is required")
		}
	default:
		return fmt.Errorf("invalid QUEUE_BACKEND %q", c.QueueBackend)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("STORE_BACKEND is postgres but POSTGRES_URL is not set")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}

	if c.KafkaResultTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_RESULT_TOPIC is set but KAFKA_BROKERS is not set")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseBrokers returns nil when KAFKA_BROKERS is unset; the memory queue
// needs no brokers.
func parseBrokers() []string {
	v := os.Getenv("KAFKA_BROKERS")
	if v == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(v)
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
