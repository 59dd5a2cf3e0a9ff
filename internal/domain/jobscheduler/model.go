package jobscheduler

import "time"

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

// DispatchEvent is one observed state of a scheduled job dispatch. The
// same DispatchID moves sent -> completed or sent -> failed as the
// queue hands the job back to us.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	MatchID      string
	ContestID    string
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}
