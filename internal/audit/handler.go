package audit

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

const serviceName = "audit-service"

// Handler consumes EntryRecorded events into the audit collection.
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
	return eventType == constants.EventTypeAuditRecorded
}

func (h *Handler) Handle(ctx context.Context, env stream.Envelope) error {
	var e Entry
	if err := env.DecodeData(&e); err != nil {
		return err
	}
	if e.EntryID == "" {
		return errors.ErrValidation.WithDetail("reason", "audit event missing entryId").AsFatal()
	}

	var inserted bool
	err := retry.RetryWithCallback(ctx, h.retryPolicy, func() error {
		var err error
		inserted, err = h.repo.InsertIfAbsent(ctx, e)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(serviceName, "audit_insert").Inc()
		h.logger.WarnwCtx(ctx, "Retrying audit entry insert",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"entry_id", e.EntryID,
		)
	})
	if err != nil {
		return fmt.Errorf("audit entry insert failed after retries: %w", err)
	}

	if !inserted {
		metrics.IncIdempotentInsert(serviceName, "audit_entry", "duplicate")
		h.logger.DebugwCtx(ctx, "Audit entry already recorded, duplicate delivery",
			"entry_id", e.EntryID,
		)
		return nil
	}

	metrics.IncIdempotentInsert(serviceName, "audit_entry", "inserted")
	h.logger.InfowCtx(ctx, "Audit entry recorded",
		"entry_id", e.EntryID,
		"action", e.Action,
		"subject", e.Subject,
	)
	return nil
}
