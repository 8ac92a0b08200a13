package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventVisitCreated   = "VISIT_CREATED"
	EventVisitCalled    = "VISIT_CALLED"
	EventVisitCompleted = "VISIT_COMPLETED"
	EventVisitCancelled = "VISIT_CANCELLED"
)

// Event is what display clients and announcers receive when a visit changes.
type Event struct {
	Type        string    `json:"type"`
	VisitID     uuid.UUID `json:"visit_id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	Date        string    `json:"registration_date"`
	DisplayCode string    `json:"display_code"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher pushes visit changes to subscribers. Publishing is best
// effort; the queue state in storage stays authoritative.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// EventLog is a persisted audit row.
type EventLog struct {
	ID        int64
	EventType string
	VisitID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
