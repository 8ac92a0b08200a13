package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

type PatientService interface {
	Register(ctx context.Context, reg patient.Registration) (*patient.Patient, bool, error)
	Resolve(ctx context.Context, nationalID string) (*patient.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DirectoryService interface {
	ListClinics(ctx context.Context) ([]directory.Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*directory.Clinic, error)
	CreateClinic(ctx context.Context, name, code string) (*directory.Clinic, error)
	DeleteClinic(ctx context.Context, id uuid.UUID) error
	ListDoctors(ctx context.Context, clinicID *uuid.UUID) ([]directory.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	CreateDoctor(ctx context.Context, name string, clinicID uuid.UUID) (*directory.Doctor, error)
	DeactivateDoctor(ctx context.Context, id uuid.UUID) error
	ListSchedules(ctx context.Context, f directory.ScheduleFilter) ([]directory.Schedule, error)
	CreateSchedule(ctx context.Context, doctorID uuid.UUID, day time.Weekday, start, end string) (*directory.Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	SchedulesOn(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]directory.Schedule, error)
}

type VisitService interface {
	CreateVisit(ctx context.Context, in visit.CreateVisitInput) (*visit.Visit, error)
	GetVisit(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	ListVisits(ctx context.Context, f visit.Filter) ([]visit.Visit, error)
	Call(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	Complete(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	PeekNext(ctx context.Context, clinicID uuid.UUID) (int, string, error)
}

type QueueReader interface {
	Board(ctx context.Context, clinicID *uuid.UUID) (*visit.Board, error)
	NowServing(ctx context.Context, clinicID uuid.UUID) (*visit.Visit, error)
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, clinicID *uuid.UUID) (<-chan visit.Event, error)
}

type RouterConfig struct {
	Patients  PatientService
	Directory DirectoryService
	Visits    VisitService
	Queue     QueueReader
	Events    EventSubscriber // optional, enables /queue/stream
	Today     func() string

	Checks   []DependencyCheck
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Today == nil {
		cfg.Today = func() string { return time.Now().Format(time.DateOnly) }
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", registerPatientHandler(cfg.Patients))
		r.Get("/lookup", lookupPatientHandler(cfg.Patients))
		r.Get("/{id}", getPatientHandler(cfg.Patients))
	})

	r.Route("/clinics", func(r chi.Router) {
		r.Get("/", listClinicsHandler(cfg.Directory))
		r.Post("/", createClinicHandler(cfg.Directory))
		r.Get("/{id}", getClinicHandler(cfg.Directory))
		r.Delete("/{id}", deleteClinicHandler(cfg.Directory))
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", listDoctorsHandler(cfg.Directory))
		r.Post("/", createDoctorHandler(cfg.Directory))
		r.Get("/{id}", getDoctorHandler(cfg.Directory))
		r.Delete("/{id}", deactivateDoctorHandler(cfg.Directory))
		r.Get("/{id}/schedule", doctorScheduleHandler(cfg.Directory, cfg.Today))
	})

	r.Route("/schedules", func(r chi.Router) {
		r.Get("/", listSchedulesHandler(cfg.Directory))
		r.Post("/", createScheduleHandler(cfg.Directory))
		r.Delete("/{id}", deleteScheduleHandler(cfg.Directory))
	})

	r.Route("/visits", func(r chi.Router) {
		r.Post("/", createVisitHandler(cfg.Visits))
		r.Get("/", listVisitsHandler(cfg.Visits))
		r.Get("/{id}", getVisitHandler(cfg.Visits))
		r.Post("/{id}/call", callVisitHandler(cfg.Visits))
		r.Post("/{id}/complete", completeVisitHandler(cfg.Visits))
	})

	r.Route("/queue", func(r chi.Router) {
		r.Get("/today", queueBoardHandler(cfg.Queue))
		r.Get("/now-serving", nowServingHandler(cfg.Queue))
		r.Get("/next", nextNumberHandler(cfg.Directory, cfg.Visits))
		if cfg.Events != nil {
			r.Get("/stream", queueStreamHandler(cfg.Events))
		}
	})

	return r
}
