package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateRedis(cfg.Database.Redis); err != nil {
		errors = append(errors, err)
	}

	if err := validateStream(cfg.Stream); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required",
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateStream(cfg StreamConfig) error {
	if cfg.Consumer.Stream != "" {
		if cfg.Consumer.Group == "" {
			return &ValidationError{
				Field:   "stream.consumer.group",
				Message: "consumer group is required when a consumer stream is configured",
			}
		}
		if cfg.Consumer.BatchSize <= 0 {
			return &ValidationError{
				Field:   "stream.consumer.batch_size",
				Message: fmt.Sprintf("batch size must be positive, got %d", cfg.Consumer.BatchSize),
			}
		}
		if cfg.Consumer.PollInterval <= 0 {
			return &ValidationError{
				Field:   "stream.consumer.poll_interval",
				Message: "poll interval must be positive",
			}
		}
		if cfg.Consumer.DeadLetterStream == cfg.Consumer.Stream {
			return &ValidationError{
				Field:   "stream.consumer.dead_letter_stream",
				Message: "dead-letter stream must be distinct from the source stream",
			}
		}
	}

	if cfg.Publisher.Stream != "" && cfg.Publisher.AwaitTimeout <= 0 {
		return &ValidationError{
			Field:   "stream.publisher.await_timeout",
			Message: "publish await timeout must be positive",
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "stream.retry.max_attempts",
			Message: fmt.Sprintf("max attempts must be at least 1, got %d", cfg.Retry.MaxAttempts),
		}
	}

	return nil
}
