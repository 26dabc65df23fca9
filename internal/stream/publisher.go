package stream

import (
	"context"
	"time"

	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/pkg/errors"
	"shopstream/pkg/metrics"
	"shopstream/pkg/tracing"
)

const (
	publishModeFireAndForget = "fire_and_forget"
	publishModeAwait         = "await"
)

// Publisher appends envelopes to a named stream. Exactly one append per call;
// retry, where wanted, belongs to the caller of PublishAwait.
type Publisher struct {
	client       Client
	stream       string
	awaitTimeout time.Duration
	logger       logger.Logger
}

func NewPublisher(client Client, stream string, awaitTimeout time.Duration, log logger.Logger) *Publisher {
	if awaitTimeout <= 0 {
		awaitTimeout = constants.DefaultPublishAwaitTimeout
	}
	return &Publisher{
		client:       client,
		stream:       stream,
		awaitTimeout: awaitTimeout,
		logger:       log,
	}
}

func (p *Publisher) Stream() string {
	return p.stream
}

// Publish is the best-effort append: failures are logged and swallowed so the
// calling domain operation never fails because auditing or notification did.
func (p *Publisher) Publish(ctx context.Context, env Envelope) {
	start := time.Now()
	if _, err := p.append(ctx, env); err != nil {
		metrics.IncEventPublished(p.stream, publishModeFireAndForget, "error")
		p.logger.ErrorwCtx(ctx, "Best-effort publish failed, event dropped",
			"error", err,
			"stream", p.stream,
			"event_id", env.ID,
			"event_type", env.Type,
		)
		return
	}
	metrics.IncEventPublished(p.stream, publishModeFireAndForget, "ok")
	metrics.ObservePublish(p.stream, publishModeFireAndForget, time.Since(start))
}

// PublishAwait appends and returns the storage-assigned record id, bounded by
// the configured timeout. On timeout the append outcome is unknown to the
// caller; callers needing certainty must de-duplicate on their own key.
func (p *Publisher) PublishAwait(ctx context.Context, env Envelope) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.awaitTimeout)
	defer cancel()

	start := time.Now()
	recordID, err := p.append(ctx, env)
	if err != nil {
		metrics.IncEventPublished(p.stream, publishModeAwait, "error")
		return "", errors.ErrPublishFailed.WithCause(err).WithDetail("stream", p.stream)
	}

	metrics.IncEventPublished(p.stream, publishModeAwait, "ok")
	metrics.ObservePublish(p.stream, publishModeAwait, time.Since(start))
	return recordID, nil
}

func (p *Publisher) append(ctx context.Context, env Envelope) (string, error) {
	payload, err := env.Marshal()
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{
		constants.FieldEventID:   env.ID,
		constants.FieldEventType: env.Type,
		constants.FieldPayload:   string(payload),
	}
	tracing.InjectRecordContext(ctx, fields)

	return p.client.Append(ctx, p.stream, fields)
}
