package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound   = errors.New("clinic not found")
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrClinicExists     = errors.New("clinic with this name already exists")
	ErrClinicInUse      = errors.New("clinic is still referenced by doctors or visits")
	ErrInvalidInput     = errors.New("invalid directory input")
)

// Repository holds the reference data of the outpatient department.
type Repository interface {
	ListClinics(ctx context.Context) ([]Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error)
	CreateClinic(ctx context.Context, c Clinic) (*Clinic, error)
	DeleteClinic(ctx context.Context, id uuid.UUID) error

	// ListDoctors returns active doctors, optionally of one clinic.
	ListDoctors(ctx context.Context, clinicID *uuid.UUID) ([]Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	DeactivateDoctor(ctx context.Context, id uuid.UUID) error

	ListSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error)
	CreateSchedule(ctx context.Context, s Schedule) (*Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
}
