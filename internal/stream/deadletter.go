package stream

import (
	"context"
	"fmt"
	"time"

	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/pkg/metrics"
)

// DeadLetter forwards unprocessable records to a side stream for operator
// inspection. Nothing in this subsystem reads the entries back.
type DeadLetter struct {
	client Client
	stream string
	logger logger.Logger
}

func NewDeadLetter(client Client, stream string, log logger.Logger) *DeadLetter {
	if stream == "" {
		stream = constants.StreamDeadLetter
	}
	return &DeadLetter{
		client: client,
		stream: stream,
		logger: log,
	}
}

func (d *DeadLetter) Stream() string {
	return d.stream
}

// Send appends a dead-letter entry. Best-effort: an append failure is logged
// and never escalated, so the original record is still acknowledged and no
// redelivery storm can start here.
func (d *DeadLetter) Send(ctx context.Context, eventID, payload string, cause error) {
	if eventID == "" {
		eventID = constants.UnknownEventID
	}

	fields := map[string]interface{}{
		constants.FieldEventID: eventID,
		constants.FieldPayload: payload,
		"errorType":            fmt.Sprintf("%T", cause),
		"errorMessage":         cause.Error(),
		"failedAt":             time.Now().UTC().Format(time.RFC3339Nano),
	}

	if _, err := d.client.Append(ctx, d.stream, fields); err != nil {
		d.logger.ErrorwCtx(ctx, "Failed to append dead-letter entry, failure recorded in logs only",
			"error", err,
			"dead_letter_stream", d.stream,
			"event_id", eventID,
			"cause", cause,
		)
		return
	}

	metrics.IncDeadLetter(d.stream, fmt.Sprintf("%T", cause))
	d.logger.WarnwCtx(ctx, "Record forwarded to dead-letter stream",
		"dead_letter_stream", d.stream,
		"event_id", eventID,
		"cause", cause,
	)
}
