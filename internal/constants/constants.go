package constants

import "time"

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultBlockDuration = 50 * time.Millisecond
	DefaultBatchSize     = 10
)

const (
	DefaultPublishAwaitTimeout = 5 * time.Second
)

const (
	StreamOrdersCompleted = "orders:completed"
	StreamAuditEvents     = "audit:events"
	StreamDeadLetter      = "events:dead-letter"
)

const (
	EventTypeOrderCompleted = "org.shopstream.checkout.OrderCompleted"
	EventTypeAuditRecorded  = "org.shopstream.audit.EntryRecorded"
)

const (
	FieldEventID   = "eventId"
	FieldEventType = "eventType"
	FieldPayload   = "payload"
	FieldTraceCtx  = "traceparent"
)

const (
	UnknownEventID = "unknown"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ContentTypeJSON = "application/json"
)
