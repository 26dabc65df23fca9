package order

import (
	"context"
	"fmt"
	"time"

	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/internal/stream"
	"shopstream/pkg/errors"
	"shopstream/pkg/metrics"
	"shopstream/pkg/retry"
)

const serviceName = "order-service"

// Handler consumes OrderCompleted events into the order projection. The
// repository write is retried with backoff for transient failures; an
// exhausted retry budget surfaces the error to the consumer, which
// dead-letters the record.
type Handler struct {
	repo        Repository
	retryPolicy retry.Policy
	logger      logger.Logger
}

func NewHandler(repo Repository, policy retry.Policy, log logger.Logger) *Handler {
	return &Handler{
		repo:        repo,
		retryPolicy: policy,
		logger:      log,
	}
}

func (h *Handler) CanHandle(eventType string) bool {
	return eventType == constants.EventTypeOrderCompleted
}

func (h *Handler) Handle(ctx context.Context, env stream.Envelope) error {
	var o Order
	if err := env.DecodeData(&o); err != nil {
		return err
	}
	if o.OrderID == "" {
		return errors.ErrValidation.WithDetail("reason", "order completed event missing orderId").AsFatal()
	}

	var inserted bool
	err := retry.RetryWithCallback(ctx, h.retryPolicy, func() error {
		var err error
		inserted, err = h.repo.InsertIfAbsent(ctx, o)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(serviceName, "order_insert").Inc()
		h.logger.WarnwCtx(ctx, "Retrying order insert",
			"attempt", attempt,
			"max_attempts", h.retryPolicy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"order_id", o.OrderID,
		)
	})
	if err != nil {
		return fmt.Errorf("order insert failed after retries: %w", err)
	}

	if !inserted {
		// Redelivery of an already-projected order: a successful no-op.
		metrics.IncIdempotentInsert(serviceName, "order", "duplicate")
		h.logger.DebugwCtx(ctx, "Order already projected, duplicate delivery",
			"order_id", o.OrderID,
		)
		return nil
	}

	metrics.IncIdempotentInsert(serviceName, "order", "inserted")
	h.logger.InfowCtx(ctx, "Order projected",
		"order_id", o.OrderID,
		"customer_id", o.CustomerID,
	)
	return nil
}
