package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"shopstream/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("stream.consumer.batch_size", constants.DefaultBatchSize)
	viper.SetDefault("stream.consumer.poll_interval", constants.DefaultPollInterval)
	viper.SetDefault("stream.consumer.block_duration", constants.DefaultBlockDuration)
	viper.SetDefault("stream.consumer.dead_letter_stream", constants.StreamDeadLetter)
	viper.SetDefault("stream.publisher.await_timeout", constants.DefaultPublishAwaitTimeout)
	viper.SetDefault("stream.retry.max_attempts", 3)
	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("stream.source", "STREAM_SOURCE")
	viper.BindEnv("stream.publisher.stream", "STREAM_PUBLISHER_STREAM")
	viper.BindEnv("stream.consumer.stream", "STREAM_CONSUMER_STREAM")
	viper.BindEnv("stream.consumer.group", "STREAM_CONSUMER_GROUP")
	viper.BindEnv("stream.consumer.name", "STREAM_CONSUMER_NAME")
	viper.BindEnv("stream.consumer.dead_letter_stream", "STREAM_CONSUMER_DEAD_LETTER_STREAM")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}
