package visit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a mutex guarded Repository for tests and local runs.
// Each method holds the lock for its whole unit of work, which gives the
// same atomicity the Postgres transactions give.
type InMemoryRepository struct {
	mu     sync.Mutex
	visits map[uuid.UUID]*Visit
	events []EventLog
	nextEv int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		visits: make(map[uuid.UUID]*Visit),
	}
}

func (r *InMemoryRepository) countLocked(scope Scope) int {
	n := 0
	for _, v := range r.visits {
		if v.Scope() == scope {
			n++
		}
	}
	return n
}

func (r *InMemoryRepository) InsertNext(_ context.Context, nv NewVisit) (*Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	number := r.countLocked(nv.Scope()) + 1

	v := &Visit{
		ID:               uuid.New(),
		PatientID:        nv.PatientID,
		ClinicID:         nv.ClinicID,
		DoctorID:         nv.DoctorID,
		RegistrationDate: nv.Date,
		QueueNumber:      number,
		DisplayCode:      FormatDisplayCode(nv.Prefix, number),
		Status:           StatusWaiting,
		PatientName:      nv.PatientName,
		ClinicName:       nv.ClinicName,
		DoctorName:       nv.DoctorName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.visits[v.ID] = v

	cp := *v
	return &cp, nil
}

func (r *InMemoryRepository) CountInScope(_ context.Context, scope Scope) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countLocked(scope), nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *InMemoryRepository) Call(_ context.Context, id uuid.UUID) (*Visit, []Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, nil, ErrVisitNotFound
	}
	if !canCall(v.Status) {
		return nil, nil, ErrInvalidTransition
	}
	if v.Status == StatusCalled {
		cp := *v
		return &cp, nil, nil
	}

	now := time.Now()

	var demoted []Visit
	for _, other := range r.visits {
		if other.ID == v.ID || other.Scope() != v.Scope() || other.Status != StatusCalled {
			continue
		}
		other.Status = StatusCompleted
		other.CompletedAt = &now
		other.UpdatedAt = now
		demoted = append(demoted, *other)
	}

	v.Status = StatusCalled
	v.CalledAt = &now
	v.UpdatedAt = now

	cp := *v
	return &cp, demoted, nil
}

func (r *InMemoryRepository) Complete(_ context.Context, id uuid.UUID) (*Visit, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, false, ErrVisitNotFound
	}

	changed, err := completeTransition(v.Status)
	if err != nil {
		return nil, false, err
	}
	if changed {
		now := time.Now()
		v.Status = StatusCompleted
		v.CompletedAt = &now
		v.UpdatedAt = now
	}

	cp := *v
	return &cp, changed, nil
}

func (r *InMemoryRepository) ListByDate(_ context.Context, date string, clinicID *uuid.UUID) ([]Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Visit
	for _, v := range r.visits {
		if v.RegistrationDate != date {
			continue
		}
		if clinicID != nil && v.ClinicID != *clinicID {
			continue
		}
		result = append(result, *v)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ClinicName != result[j].ClinicName {
			return result[i].ClinicName < result[j].ClinicName
		}
		return result[i].QueueNumber < result[j].QueueNumber
	})
	return result, nil
}

func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Visit, error) {
	f = f.normalized()

	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Visit
	for _, v := range r.visits {
		if f.Month != "" && !strings.HasPrefix(v.RegistrationDate, f.Month+"-") {
			continue
		}
		if f.Date != "" && v.RegistrationDate != f.Date {
			continue
		}
		if f.ClinicID != nil && v.ClinicID != *f.ClinicID {
			continue
		}
		if f.DoctorID != nil && v.DoctorID != *f.DoctorID {
			continue
		}
		result = append(result, *v)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.RegistrationDate != b.RegistrationDate {
			return a.RegistrationDate > b.RegistrationDate
		}
		if a.ClinicName != b.ClinicName {
			return a.ClinicName < b.ClinicName
		}
		return a.QueueNumber < b.QueueNumber
	})

	if f.Offset >= len(result) {
		return nil, nil
	}
	result = result[f.Offset:]
	if len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (r *InMemoryRepository) CloseStale(_ context.Context, before string) ([]Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	var closed []Visit
	for _, v := range r.visits {
		if v.RegistrationDate >= before {
			continue
		}
		switch v.Status {
		case StatusWaiting:
			v.Status = StatusCancelled
		case StatusCalled:
			v.Status = StatusCompleted
			v.CompletedAt = &now
		default:
			continue
		}
		v.UpdatedAt = now
		closed = append(closed, *v)
	}
	return closed, nil
}

func (r *InMemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEv++
	ev.ID = r.nextEv
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the audit log.
func (r *InMemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]EventLog(nil), r.events...)
}
