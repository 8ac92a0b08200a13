package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrVisitNotFound     = errors.New("visit not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid visit input")

	// ErrQueueNumberTaken is returned by InsertNext when the computed number
	// collided with an existing visit. The sequencer retries it.
	ErrQueueNumberTaken = errors.New("queue number already taken")
	// ErrQueueConflict is the terminal error after the retries ran out.
	ErrQueueConflict = errors.New("could not assign a queue number, please retry")
	// ErrCalledInvariant means more than one visit of a clinic-day is called.
	ErrCalledInvariant = errors.New("more than one visit is called in the same clinic and day")
)

// Repository contains all DB interactions needed by the queue engine. Every
// mutating method is one atomic unit of work.
type Repository interface {
	// InsertNext assigns count(scope)+1 as queue number and inserts the
	// visit with status waiting, atomically with respect to other inserts
	// into the same scope.
	InsertNext(ctx context.Context, nv NewVisit) (*Visit, error)
	CountInScope(ctx context.Context, scope Scope) (int, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)

	// Call completes every other called visit of the target's scope and
	// then marks the target called. The demoted visits are returned.
	Call(ctx context.Context, id uuid.UUID) (*Visit, []Visit, error)
	// Complete marks the visit completed. changed is false when it already
	// was.
	Complete(ctx context.Context, id uuid.UUID) (v *Visit, changed bool, err error)

	// ListByDate returns the visits of one day ordered by clinic and number.
	ListByDate(ctx context.Context, date string, clinicID *uuid.UUID) ([]Visit, error)
	List(ctx context.Context, f Filter) ([]Visit, error)

	// CloseStale cancels waiting visits and completes called visits dated
	// before the given day, returning the visits it changed.
	CloseStale(ctx context.Context, before string) ([]Visit, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
