package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

const (
	envHTTPAddr    = "STOREFRONT_HTTP_ADDR"
	envGRPCAddr    = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr = "STOREFRONT_METRICS_ADDR"

	envStorageDriver       = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN         = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate = "STOREFRONT_POSTGRES_AUTO_MIGRATE"

	envRedisAddr     = "STOREFRONT_REDIS_ADDR"
	envRedisPassword = "STOREFRONT_REDIS_PASSWORD"
	envRedisDB       = "STOREFRONT_REDIS_DB"
	envSessionTTL    = "STOREFRONT_SESSION_TTL"

	envKafkaBrokers  = "KAFKA_BROKERS"
	envKafkaClientID = "STOREFRONT_KAFKA_CLIENT_ID"
	envKafkaTopic    = "STOREFRONT_KAFKA_TOPIC"

	envOutboxPollInterval = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending   = "STOREFRONT_OUTBOX_MAX_PENDING"

	envIdempotencyTTL              = "STOREFRONT_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envTracingEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envTracingSampleRatio = "STOREFRONT_TRACING_SAMPLE_RATIO"
	envTracingInsecure    = "STOREFRONT_TRACING_INSECURE"

	envAdminName     = "STOREFRONT_ADMIN_NAME"
	envAdminEmail    = "STOREFRONT_ADMIN_EMAIL"
	envAdminPassword = "STOREFRONT_ADMIN_PASSWORD"

	envLogLevel  = "STOREFRONT_LOG_LEVEL"
	envLogFormat = "STOREFRONT_LOG_FORMAT"
)

type envLookup func(key string) (string, bool)

// configWarning — переменная окружения, значение которой проигнорировано.
type configWarning struct {
	Key   string
	Value string
	Err   error
}

func (w configWarning) String() string {
	return fmt.Sprintf("%s=%q: %v", w.Key, w.Value, w.Err)
}

func readConfig() (app.Config, []configWarning) {
	return readConfigFromEnv(os.LookupEnv)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения пропускаются с предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []configWarning) {
	cfg := app.DefaultConfig()
	var warnings []configWarning

	warn := func(key, value string, err error) {
		warnings = append(warnings, configWarning{Key: key, Value: value, Err: err})
	}

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setBool := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	setInt := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envGRPCAddr, &cfg.GRPCAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
	}
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	setString(envRedisAddr, &cfg.RedisAddr)
	if v, ok := lookup(envRedisPassword); ok {
		cfg.RedisPassword = v
	}
	setInt(envRedisDB, &cfg.RedisDB, nonNegative, "must be >= 0")
	setDuration(envSessionTTL, &cfg.SessionTTL, positiveDuration, "must be > 0")

	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envKafkaClientID, &cfg.KafkaClientID)
	setString(envKafkaTopic, &cfg.KafkaTopic)

	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	setInt(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	setDuration(envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")
	setDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	setInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	setString(envTracingEndpoint, &cfg.TracingEndpoint)
	if v, ok := lookup(envTracingSampleRatio); ok && strings.TrimSpace(v) != "" {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		switch {
		case err != nil:
			warn(envTracingSampleRatio, v, err)
		case ratio < 0 || ratio > 1:
			warn(envTracingSampleRatio, v, fmt.Errorf("must be within [0, 1]"))
		default:
			cfg.TracingSampleRatio = ratio
		}
	}
	setBool(envTracingInsecure, &cfg.TracingInsecure)

	setString(envAdminName, &cfg.BootstrapAdminName)
	setString(envAdminEmail, &cfg.BootstrapAdminEmail)
	if v, ok := lookup(envAdminPassword); ok {
		cfg.BootstrapAdminPassword = v
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}
