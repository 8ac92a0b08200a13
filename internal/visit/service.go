package visit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
)

type PatientResolver interface {
	Resolve(ctx context.Context, nationalID string) (*patient.Patient, error)
}

type Directory interface {
	ClinicLookup
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// Service drives the visit lifecycle: waiting -> called -> completed, with
// cancelled reserved for visits left open past their day.
type Service struct {
	repo        Repository
	patients    PatientResolver
	directory   Directory
	sequencer   *Sequencer
	publisher   EventPublisher
	metrics     *metrics.Metrics
	clock       Clock
	maxAttempts int
	log         zerolog.Logger
}

type Option func(s *Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

func NewService(repo Repository, patients PatientResolver, dir Directory, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		patients:    patients,
		directory:   dir,
		publisher:   nopPublisher{},
		clock:       NewClock(time.UTC, nil),
		maxAttempts: 3,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	s.log = s.log.With().Str("component", "visit_lifecycle").Logger()
	s.sequencer = NewSequencer(repo, dir, s.maxAttempts, s.metrics, s.log)
	return s
}

func (s *Service) Clock() Clock { return s.clock }

// PeekNext previews the ticket the next registration at clinicID would get
// today.
func (s *Service) PeekNext(ctx context.Context, clinicID uuid.UUID) (int, string, error) {
	return s.sequencer.Peek(ctx, clinicID, s.clock.Today())
}

// CreateVisit admits a registered patient into today's queue of a clinic.
func (s *Service) CreateVisit(ctx context.Context, in CreateVisitInput) (*Visit, error) {
	if in.NationalID == "" || in.ClinicID == uuid.Nil || in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: national_id, clinic_id and doctor_id are required", ErrInvalidInput)
	}

	p, err := s.patients.Resolve(ctx, in.NationalID)
	if err != nil {
		switch {
		case errors.Is(err, patient.ErrInvalidInput):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case errors.Is(err, patient.ErrPatientNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	clinic, err := s.directory.GetClinic(ctx, in.ClinicID)
	if err != nil {
		if errors.Is(err, directory.ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load clinic: %w", err)
	}

	doctor, err := s.directory.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.ClinicID != clinic.ID {
		return nil, fmt.Errorf("%w: doctor does not practice at this clinic", ErrInvalidInput)
	}
	if !doctor.Active {
		return nil, fmt.Errorf("%w: doctor is no longer active", ErrInvalidInput)
	}

	v, err := s.sequencer.Assign(ctx, NewVisit{
		PatientID:   p.ID,
		ClinicID:    clinic.ID,
		DoctorID:    doctor.ID,
		Date:        s.clock.Today(),
		Prefix:      clinic.Code,
		PatientName: p.Name,
		ClinicName:  clinic.Name,
		DoctorName:  doctor.Name,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.VisitsCreated.WithLabelValues(v.ClinicName).Inc()
	s.log.Info().
		Str("visit_id", v.ID.String()).
		Str("clinic", v.ClinicName).
		Str("display_code", v.DisplayCode).
		Msg("visit created")
	s.logEvent(ctx, v, EventVisitCreated, "")

	return v, nil
}

// Call makes the visit the one being served in its clinic today. Any other
// called visit of the same clinic-day is completed in the same unit of work.
func (s *Service) Call(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, demoted, err := s.repo.Call(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("call visit: %w", err)
	}

	for i := range demoted {
		s.metrics.Transitions.WithLabelValues("auto_complete").Inc()
		s.logEvent(ctx, &demoted[i], EventVisitCompleted, "superseded_by_call")
	}

	s.metrics.Transitions.WithLabelValues("call").Inc()
	s.log.Info().
		Str("visit_id", v.ID.String()).
		Str("display_code", v.DisplayCode).
		Int("demoted", len(demoted)).
		Msg("visit called")
	s.logEvent(ctx, v, EventVisitCalled, "")

	return v, nil
}

// Complete finishes a visit. Completing a completed visit succeeds without
// change; a cancelled visit cannot be completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, changed, err := s.repo.Complete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("complete visit: %w", err)
	}
	if !changed {
		return v, nil
	}

	s.metrics.Transitions.WithLabelValues("complete").Inc()
	s.log.Info().
		Str("visit_id", v.ID.String()).
		Str("display_code", v.DisplayCode).
		Msg("visit completed")
	s.logEvent(ctx, v, EventVisitCompleted, "")

	return v, nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

// ListVisits backs the monthly monitoring view.
func (s *Service) ListVisits(ctx context.Context, f Filter) ([]Visit, error) {
	if f.Month != "" && !validMonth(f.Month) {
		return nil, fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)
	}
	if f.Date != "" && !validDate(f.Date) {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	visits, err := s.repo.List(ctx, f.normalized())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}

// CloseStaleVisits closes what earlier days left open: waiting visits are
// cancelled and called visits are completed.
func (s *Service) CloseStaleVisits(ctx context.Context) (int, error) {
	closed, err := s.repo.CloseStale(ctx, s.clock.Today())
	if err != nil {
		return 0, fmt.Errorf("close stale visits: %w", err)
	}

	for i := range closed {
		v := &closed[i]
		if v.Status == StatusCancelled {
			s.metrics.Transitions.WithLabelValues("cancel").Inc()
			s.logEvent(ctx, v, EventVisitCancelled, "day_closed")
		} else {
			s.metrics.Transitions.WithLabelValues("auto_complete").Inc()
			s.logEvent(ctx, v, EventVisitCompleted, "day_closed")
		}
	}
	s.metrics.StaleVisitsClosed.Add(float64(len(closed)))

	if len(closed) > 0 {
		s.log.Info().Int("closed", len(closed)).Msg("stale visits closed")
	}
	return len(closed), nil
}

// logEvent records the change and notifies subscribers. Failures are logged
// and never fail the operation that triggered them.
func (s *Service) logEvent(ctx context.Context, v *Visit, eventType, reason string) {
	ev := Event{
		Type:        eventType,
		VisitID:     v.ID,
		ClinicID:    v.ClinicID,
		Date:        v.RegistrationDate,
		DisplayCode: v.DisplayCode,
		Status:      v.Status,
		Reason:      reason,
		OccurredAt:  s.clock.Now(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	visitID := v.ID
	if err := s.repo.InsertEvent(ctx, EventLog{
		EventType: eventType,
		VisitID:   &visitID,
		Payload:   data,
		CreatedAt: ev.OccurredAt,
	}); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("visit_id", v.ID.String()).Msg("failed to insert event log")
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("visit_id", v.ID.String()).Msg("failed to publish event")
	}
}
