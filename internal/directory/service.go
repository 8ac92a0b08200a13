package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Service fronts the directory repository with a short lived cache for the
// single-record lookups made on every visit registration.
type Service struct {
	repo  Repository
	cache *cache.Cache
	log   zerolog.Logger
}

func NewService(repo Repository, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
		log:   log.With().Str("component", "directory").Logger(),
	}
}

func clinicKey(id uuid.UUID) string { return "clinic:" + id.String() }
func doctorKey(id uuid.UUID) string { return "doctor:" + id.String() }

// Clinics

func (s *Service) ListClinics(ctx context.Context) ([]Clinic, error) {
	clinics, err := s.repo.ListClinics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	return clinics, nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	if v, ok := s.cache.Get(clinicKey(id)); ok {
		c := v.(Clinic)
		return &c, nil
	}

	c, err := s.repo.GetClinic(ctx, id)
	if err != nil {
		if errors.Is(err, ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get clinic: %w", err)
	}

	s.cache.SetDefault(clinicKey(id), *c)
	return c, nil
}

func (s *Service) CreateClinic(ctx context.Context, name, code string) (*Clinic, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" || code == "" {
		return nil, fmt.Errorf("%w: clinic name and code are required", ErrInvalidInput)
	}

	c, err := s.repo.CreateClinic(ctx, Clinic{Name: name, Code: code})
	if err != nil {
		if errors.Is(err, ErrClinicExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create clinic: %w", err)
	}

	s.log.Info().Str("clinic_id", c.ID.String()).Str("name", c.Name).Str("code", c.Code).Msg("clinic created")
	return c, nil
}

func (s *Service) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteClinic(ctx, id); err != nil {
		if errors.Is(err, ErrClinicNotFound) || errors.Is(err, ErrClinicInUse) {
			return err
		}
		return fmt.Errorf("delete clinic: %w", err)
	}

	s.cache.Delete(clinicKey(id))
	s.log.Info().Str("clinic_id", id.String()).Msg("clinic deleted")
	return nil
}

// Doctors

func (s *Service) ListDoctors(ctx context.Context, clinicID *uuid.UUID) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if v, ok := s.cache.Get(doctorKey(id)); ok {
		d := v.(Doctor)
		return &d, nil
	}

	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}

	s.cache.SetDefault(doctorKey(id), *d)
	return d, nil
}

func (s *Service) CreateDoctor(ctx context.Context, name string, clinicID uuid.UUID) (*Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" || clinicID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor name and clinic are required", ErrInvalidInput)
	}

	d, err := s.repo.CreateDoctor(ctx, Doctor{Name: name, ClinicID: clinicID})
	if err != nil {
		if errors.Is(err, ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	s.log.Info().Str("doctor_id", d.ID.String()).Str("clinic_id", clinicID.String()).Msg("doctor created")
	return d, nil
}

// DeactivateDoctor hides the doctor from registration. Past visits keep
// pointing at the record.
func (s *Service) DeactivateDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateDoctor(ctx, id); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("deactivate doctor: %w", err)
	}

	s.cache.Delete(doctorKey(id))
	s.log.Info().Str("doctor_id", id.String()).Msg("doctor deactivated")
	return nil
}

// Schedules

func (s *Service) ListSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	schedules, err := s.repo.ListSchedules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) CreateSchedule(ctx context.Context, doctorID uuid.UUID, day time.Weekday, start, end string) (*Schedule, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor is required", ErrInvalidInput)
	}
	if day < time.Sunday || day > time.Saturday {
		return nil, fmt.Errorf("%w: day out of range", ErrInvalidInput)
	}

	startAt, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	endAt, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	if !startAt.Before(endAt) {
		return nil, fmt.Errorf("%w: start time must be before end time", ErrInvalidInput)
	}

	sched, err := s.repo.CreateSchedule(ctx, Schedule{
		DoctorID:  doctorID,
		Day:       day,
		StartTime: startAt.Format("15:04"),
		EndTime:   endAt.Format("15:04"),
	})
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteSchedule(ctx, id); err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return err
		}
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// SchedulesOn returns the doctor's practice hours on the weekday of date.
func (s *Service) SchedulesOn(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Schedule, error) {
	day := date.Weekday()
	return s.ListSchedules(ctx, ScheduleFilter{DoctorID: &doctorID, Day: &day})
}
