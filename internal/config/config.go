package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseURL string
	DBMaxConns  int32

	// Weather provider configuration.
	WeatherAPIKey    string
	WeatherBaseURL   string
	WeatherTimeout   time.Duration
	WeatherCacheSize int
	WeatherCacheTTL  time.Duration

	// Scheduler pacing.
	MonitorInterval   time.Duration
	MonitorBatchSize  int
	MonitorBatchDelay time.Duration
	MonitorAutostart  bool

	// Change notifications are published to Kafka when brokers are set.
	KafkaBrokers   []string
	KafkaRiskTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parsePositiveDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}
	interval, err := parsePositiveDuration("MONITOR_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	batchDelay, err := parseDuration("MONITOR_BATCH_DELAY", "1s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseBoundedInt("WEATHER_CACHE_SIZE", 500, 1, 100000)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseBoundedInt("MONITOR_BATCH_SIZE", 3, 1, 50)
	if err != nil {
		return nil, err
	}
	maxConns, err := parseBoundedInt("DB_MAX_CONNS", 5, 1, 100)
	if err != nil {
		return nil, err
	}

	autostart, err := strconv.ParseBool(sharedcfg.EnvOrDefault("MONITOR_AUTOSTART", "true"))
	if err != nil {
		return nil, errors.New("invalid MONITOR_AUTOSTART")
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(maxConns), //nolint:gosec // bounded to 100 above

		WeatherAPIKey:    os.Getenv("WEATHER_API_KEY"),
		WeatherBaseURL:   sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: cacheSize,
		WeatherCacheTTL:  cacheTTL,

		MonitorInterval:   interval,
		MonitorBatchSize:  batchSize,
		MonitorBatchDelay: batchDelay,
		MonitorAutostart:  autostart,

		KafkaBrokers:   brokers,
		KafkaRiskTopic: sharedcfg.EnvOrDefault("KAFKA_RISK_TOPIC", "flood-risk-changes"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaRiskTopic == "" {
		return nil, errors.New("KAFKA_RISK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether risk changes are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBoundedInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}
