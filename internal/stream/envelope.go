package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopstream/internal/constants"
)

// Envelope is the portable event unit moved between services. Immutable once
// built; redelivery of the same record carries the same ID so idempotent
// sinks can detect duplicates.
type Envelope struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// DecodeError marks a payload as unparseable. It is fatal: per-record
// processing routes it straight to the dead-letter sink, never to retry.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) IsFatal() bool {
	return true
}

// New builds an envelope for the given event type, stamping a fresh id and
// the current time, with payload serialized as the data document.
func New(eventType, source, subject string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return Envelope{
		ID:              uuid.NewString(),
		Source:          source,
		Type:            eventType,
		Subject:         subject,
		Time:            time.Now().UTC(),
		DataContentType: constants.ContentTypeJSON,
		Data:            data,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed envelope", Err: err}
	}
	if env.ID == "" {
		return Envelope{}, &DecodeError{Reason: "envelope missing id"}
	}
	if env.Type == "" {
		return Envelope{}, &DecodeError{Reason: "envelope missing type"}
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into a caller-provided shape.
func (e Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 {
		return &DecodeError{Reason: "envelope has no data"}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return &DecodeError{Reason: fmt.Sprintf("data does not match %T", v), Err: err}
	}
	return nil
}
