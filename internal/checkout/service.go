package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shopstream/internal/audit"
	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/internal/order"
	"shopstream/internal/stream"
	"shopstream/pkg/errors"
	"shopstream/pkg/metrics"
)

type CompleteRequest struct {
	CartID     string `json:"cartId" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
	TotalCents int64  `json:"totalCents" binding:"required,gt=0"`
	Currency   string `json:"currency"`
}

type CompleteResult struct {
	OrderID  string `json:"orderId"`
	EventID  string `json:"eventId"`
	RecordID string `json:"recordId"`
}

// Publisher is the slice of stream.Publisher this service depends on.
type Publisher interface {
	Publish(ctx context.Context, env stream.Envelope)
	PublishAwait(ctx context.Context, env stream.Envelope) (string, error)
}

// Service completes checkouts. The OrderCompleted event is published in
// await mode so the caller only sees success once the event is durably
// queued; the audit trail is fire-and-forget and must never fail the
// checkout.
type Service struct {
	orders Publisher
	audits Publisher
	source string
	logger logger.Logger
}

func NewService(orders, audits Publisher, source string, log logger.Logger) *Service {
	return &Service{
		orders: orders,
		audits: audits,
		source: source,
		logger: log,
	}
}

func (s *Service) Complete(ctx context.Context, req CompleteRequest) (CompleteResult, error) {
	if req.Currency == "" {
		req.Currency = "USD"
	}

	o := order.Order{
		OrderID:     uuid.NewString(),
		CartID:      req.CartID,
		CustomerID:  req.CustomerID,
		TotalCents:  req.TotalCents,
		Currency:    req.Currency,
		CompletedAt: time.Now().UTC(),
	}

	env, err := stream.New(constants.EventTypeOrderCompleted, s.source, "CART:"+req.CartID, o)
	if err != nil {
		metrics.CheckoutRequestsTotal.WithLabelValues("error").Inc()
		return CompleteResult{}, errors.ErrInternal.WithCause(err)
	}

	recordID, err := s.orders.PublishAwait(ctx, env)
	if err != nil {
		metrics.CheckoutRequestsTotal.WithLabelValues("error").Inc()
		s.logger.ErrorwCtx(ctx, "Checkout completion event publish failed",
			"error", err,
			"cart_id", req.CartID,
		)
		return CompleteResult{}, err
	}

	s.publishAuditTrail(ctx, o)

	metrics.CheckoutRequestsTotal.WithLabelValues("completed").Inc()
	s.logger.InfowCtx(ctx, "Checkout completed",
		"order_id", o.OrderID,
		"cart_id", o.CartID,
		"record_id", recordID,
	)

	return CompleteResult{
		OrderID:  o.OrderID,
		EventID:  env.ID,
		RecordID: recordID,
	}, nil
}

func (s *Service) publishAuditTrail(ctx context.Context, o order.Order) {
	entry := audit.Entry{
		EntryID: uuid.NewString(),
		Actor:   o.CustomerID,
		Action:  "checkout.completed",
		Subject: "ORDER:" + o.OrderID,
		Detail: map[string]interface{}{
			"cartId":     o.CartID,
			"totalCents": o.TotalCents,
			"currency":   o.Currency,
		},
		OccurredAt: time.Now().UTC(),
	}

	env, err := stream.New(constants.EventTypeAuditRecorded, s.source, entry.Subject, entry)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to build audit event, trail entry dropped",
			"error", err,
			"order_id", o.OrderID,
		)
		return
	}

	s.audits.Publish(ctx, env)
}
