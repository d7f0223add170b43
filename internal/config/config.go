package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SOURCE_TIMEZONE must resolve on hosts without zoneinfo

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir        string
	DataGlob       string
	SourceTimezone string
	Location       *time.Location
	IngestWorkers  int
	DedupPolicy    domain.DedupPolicy
	JoinMissPolicy domain.JoinMissPolicy

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SessionTTL       time.Duration
	SessionCacheSize int

	// Kafka sink for joined measurements; disabled unless brokers are set.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	BatchSize      int

	// Mapbox reverse geocoding of stations.
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

	tzName := sharedcfg.EnvOrDefault("SOURCE_TIMEZONE", "Asia/Shanghai")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_TIMEZONE %q: %w", tzName, err)
	}

	workers, err := parsePositiveInt("INGEST_WORKERS", 4, 64)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parsePositiveDuration("SESSION_TTL", "30m")
	if err != nil {
		return nil, err
	}

	sessionCacheSize, err := parsePositiveInt("SESSION_CACHE_SIZE", 1000, 1_000_000)
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	dedup := domain.DedupPolicy(strings.ToLower(sharedcfg.EnvOrDefault("DEDUP_POLICY", string(domain.DedupKeep))))
	switch dedup {
	case domain.DedupKeep, domain.DedupDrop:
	default:
		return nil, fmt.Errorf("invalid DEDUP_POLICY %q (allowed: keep, drop)", dedup)
	}

	joinMiss := domain.JoinMissPolicy(strings.ToLower(sharedcfg.EnvOrDefault("JOIN_MISS_POLICY", string(domain.JoinMissDrop))))
	switch joinMiss {
	case domain.JoinMissDrop, domain.JoinMissFail:
	default:
		return nil, fmt.Errorf("invalid JOIN_MISS_POLICY %q (allowed: drop, fail)", joinMiss)
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "./data"),
		DataGlob:       sharedcfg.EnvOrDefault("DATA_GLOB", "*.csv"),
		SourceTimezone: tzName,
		Location:       loc,
		IngestWorkers:  workers,
		DedupPolicy:    dedup,
		JoinMissPolicy: joinMiss,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SessionTTL:       sessionTTL,
		SessionCacheSize: sessionCacheSize,

		KafkaEnabled:   len(brokers) > 0,
		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "air-quality-measurements"),
		BatchSize:      batchSize,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def, limit int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > limit {
		return 0, fmt.Errorf("invalid %s %q (want 1-%d)", key, s, limit)
	}
	return n, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
