package audit

import "time"

// Entry is one audit-trail record. EntryID is the natural identifier and
// doubles as the Mongo _id, which makes re-inserts on redelivery harmless.
type Entry struct {
	EntryID    string                 `json:"entryId" bson:"_id"`
	Actor      string                 `json:"actor" bson:"actor"`
	Action     string                 `json:"action" bson:"action"`
	Subject    string                 `json:"subject" bson:"subject"`
	Detail     map[string]interface{} `json:"detail,omitempty" bson:"detail,omitempty"`
	OccurredAt time.Time              `json:"occurredAt" bson:"occurred_at"`
}
