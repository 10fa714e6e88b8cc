package events

import "time"

// Event defines the contract for all workflow telemetry events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation used by the workflow.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Workflow event codes. One event per user-visible workflow milestone, the
// same granularity the interactive surface reports on.
const (
	TypeSessionStarted    = "SESSION_STARTED"
	TypeUploadRejected    = "UPLOAD_REJECTED"
	TypeFieldsSelected    = "FIELDS_SELECTED"
	TypePairLabeled       = "PAIR_LABELED"
	TypeJobSubmitted      = "JOB_SUBMITTED"
	TypeJobCompleted      = "JOB_COMPLETED"
	TypeJobFailed         = "JOB_FAILED"
	TypeThresholdAdjusted = "THRESHOLD_ADJUSTED"
)

// New builds a workflow event with the occurrence time stamped now.
func New(eventType string, data map[string]interface{}) Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
