package domain

import "time"

// EventLevel is the severity of an ingestion/retrieval log record.
type EventLevel string

const (
	EventInfo    EventLevel = "INFO"
	EventWarning EventLevel = "WARNING"
	EventError   EventLevel = "ERROR"
)

// Event is one observability record. DocumentID is empty when the record
// is not attributable to a single document (e.g. a failed query).
type Event struct {
	LogID      int64
	DocumentID string
	Level      EventLevel
	Message    string
	CreatedAt  time.Time
}
