package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a mutex guarded Repository for tests and local runs.
type InMemoryRepository struct {
	mu        sync.RWMutex
	clinics   map[uuid.UUID]Clinic
	doctors   map[uuid.UUID]Doctor
	schedules map[uuid.UUID]Schedule
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		clinics:   make(map[uuid.UUID]Clinic),
		doctors:   make(map[uuid.UUID]Doctor),
		schedules: make(map[uuid.UUID]Schedule),
	}
}

func (r *InMemoryRepository) ListClinics(_ context.Context) ([]Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Clinic, 0, len(r.clinics))
	for _, c := range r.clinics {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *InMemoryRepository) GetClinic(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (r *InMemoryRepository) CreateClinic(_ context.Context, c Clinic) (*Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.clinics {
		if strings.EqualFold(existing.Name, c.Name) {
			return nil, ErrClinicExists
		}
	}

	now := time.Now()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.clinics[c.ID] = c
	return &c, nil
}

func (r *InMemoryRepository) DeleteClinic(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clinics[id]; !ok {
		return ErrClinicNotFound
	}
	// Doctors are only ever deactivated, so a clinic with visits always
	// still has one.
	for _, d := range r.doctors {
		if d.ClinicID == id {
			return ErrClinicInUse
		}
	}
	delete(r.clinics, id)
	return nil
}

func (r *InMemoryRepository) ListDoctors(_ context.Context, clinicID *uuid.UUID) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Doctor
	for _, d := range r.doctors {
		if !d.Active {
			continue
		}
		if clinicID != nil && d.ClinicID != *clinicID {
			continue
		}
		d.ClinicName = r.clinics[d.ClinicID].Name
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *InMemoryRepository) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.ClinicName = r.clinics[d.ClinicID].Name
	return &d, nil
}

func (r *InMemoryRepository) CreateDoctor(_ context.Context, d Doctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clinic, ok := r.clinics[d.ClinicID]
	if !ok {
		return nil, ErrClinicNotFound
	}

	now := time.Now()
	d.ID = uuid.New()
	d.Active = true
	d.CreatedAt = now
	d.UpdatedAt = now
	r.doctors[d.ID] = d

	d.ClinicName = clinic.Name
	return &d, nil
}

func (r *InMemoryRepository) DeactivateDoctor(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Active = false
	d.UpdatedAt = time.Now()
	r.doctors[id] = d
	return nil
}

func (r *InMemoryRepository) ListSchedules(_ context.Context, f ScheduleFilter) ([]Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Schedule
	for _, s := range r.schedules {
		if f.DoctorID != nil && s.DoctorID != *f.DoctorID {
			continue
		}
		if f.Day != nil && s.Day != *f.Day {
			continue
		}
		s.DoctorName = r.doctors[s.DoctorID].Name
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return result[i].Day < result[j].Day
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (r *InMemoryRepository) CreateSchedule(_ context.Context, s Schedule) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doctor, ok := r.doctors[s.DoctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}

	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	r.schedules[s.ID] = s

	s.DoctorName = doctor.Name
	return &s, nil
}

func (r *InMemoryRepository) DeleteSchedule(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}
