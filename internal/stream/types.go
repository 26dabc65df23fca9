package stream

import (
	"context"
	"time"
)

// Record is the transport-level unit read from a stream: the storage-assigned
// identifier used for acknowledgment plus the flat field map.
type Record struct {
	ID     string
	Fields map[string]string
}

type ReadArgs struct {
	Stream   string
	Group    string
	Consumer string
	Count    int64
	Block    time.Duration
}

// Client is the narrow surface this package needs from the stream storage
// engine. The engine owns delivery cursors and group membership; no client-side
// position state exists here.
type Client interface {
	// Append adds a record and returns the storage-assigned record id.
	Append(ctx context.Context, stream string, fields map[string]interface{}) (string, error)

	// EnsureGroup creates the consumer group, creating the stream if needed.
	// An already-existing group is success, not an error.
	EnsureGroup(ctx context.Context, stream, group string) error

	// ReadGroup returns up to Count new records for the group/consumer,
	// blocking server-side up to Block when none are available.
	ReadGroup(ctx context.Context, args ReadArgs) ([]Record, error)

	// Ack marks records processed for the (stream, group) pair.
	Ack(ctx context.Context, stream, group string, ids ...string) error
}

// Handler processes decoded envelopes. CanHandle gates dispatch: a false
// return means the record belongs to another logical topic sharing the stream
// and is acknowledged without side effects.
type Handler interface {
	CanHandle(eventType string) bool
	Handle(ctx context.Context, env Envelope) error
}
