package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Open-Meteo weather provider.
	WeatherBaseURL      string
	WeatherTimezone     string
	WeatherFetchTimeout time.Duration
	WeatherCacheTTL     time.Duration

	RefreshInterval    time.Duration
	RefreshConcurrency int

	// Classification thresholds.
	VoteConfirmThreshold int
	PrecipitationRiskMM  float64
	ProbabilityWatchPct  int

	// Zone persistence.
	StoreBackend string
	StorePath    string
	SQLitePath   string
	RedisURL     string
	RedisKey     string

	// Zone event publishing.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("WEATHER_FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "120s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("REFRESH_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}
	confirmVotes, err := parsePositiveInt("VOTE_CONFIRM_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}
	probabilityPct, err := parsePositiveInt("PROBABILITY_WATCH_PCT", 80)
	if err != nil {
		return nil, err
	}
	if probabilityPct > 100 {
		return nil, errors.New("PROBABILITY_WATCH_PCT must be between 1 and 100")
	}

	precipitationMM := 10.0
	if s := os.Getenv("PRECIPITATION_RISK_MM"); s != "" {
		v, perr := strconv.ParseFloat(s, 64)
		if perr != nil || v < 0 {
			return nil, errors.New("invalid PRECIPITATION_RISK_MM")
		}
		precipitationMM = v
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WeatherBaseURL:      sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com"),
		WeatherTimezone:     sharedcfg.EnvOrDefault("WEATHER_TIMEZONE", "America/Sao_Paulo"),
		WeatherFetchTimeout: fetchTimeout,
		WeatherCacheTTL:     cacheTTL,

		RefreshInterval:    refreshInterval,
		RefreshConcurrency: concurrency,

		VoteConfirmThreshold: confirmVotes,
		PrecipitationRiskMM:  precipitationMM,
		ProbabilityWatchPct:  probabilityPct,

		StoreBackend: sharedcfg.EnvOrDefault("STORE_BACKEND", BackendFile),
		StorePath:    sharedcfg.EnvOrDefault("STORE_PATH", "zones.json"),
		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "zones.db"),
		RedisURL:     sharedcfg.EnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:     sharedcfg.EnvOrDefault("REDIS_KEY", "floodwatch:zones"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "flood-zone-updates"),
		KafkaEnabled: kafkaEnabled,
	}

	switch cfg.StoreBackend {
	case BackendFile, BackendSQLite, BackendRedis:
	default:
		return nil, errors.New("STORE_BACKEND must be one of file, sqlite, redis")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

// Thresholds returns the classification thresholds as a domain value.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		ConfirmVotes:    c.VoteConfirmThreshold,
		PrecipitationMM: c.PrecipitationRiskMM,
		ProbabilityPct:  c.ProbabilityWatchPct,
	}
}

// StaleAfter is how old a zone's snapshot may get before it is displayed as stale.
func (c *Config) StaleAfter() time.Duration {
	return 2 * c.RefreshInterval
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
