package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

type fakeSubscriber struct {
	events []visit.Event
}

func (f fakeSubscriber) Subscribe(context.Context, *uuid.UUID) (<-chan visit.Event, error) {
	ch := make(chan visit.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type HandlersSuite struct {
	suite.Suite
	router   http.Handler
	registry *prometheus.Registry
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	wib := time.FixedZone("WIB", 7*60*60)
	clock := visit.NewClock(wib, func() time.Time {
		return time.Date(2026, 10, 15, 9, 0, 0, 0, wib)
	})

	s.registry = prometheus.NewRegistry()
	m := metrics.New(s.registry)

	patients := patient.NewRegistry(patient.NewInMemoryRepository(), zerolog.Nop())
	dir := directory.NewService(directory.NewInMemoryRepository(), time.Minute, zerolog.Nop())
	repo := visit.NewInMemoryRepository()
	visits := visit.NewService(repo, patients, dir, visit.WithClock(clock), visit.WithMetrics(m))

	s.router = NewRouter(RouterConfig{
		Patients:  patients,
		Directory: dir,
		Visits:    visits,
		Queue:     visit.NewProjection(repo, clock, m, zerolog.Nop()),
		Events: fakeSubscriber{events: []visit.Event{
			{Type: visit.EventVisitCalled, DisplayCode: "U-002", Status: visit.StatusCalled},
		}},
		Today:    clock.Today,
		Metrics:  m,
		Gatherer: s.registry,
		Logger:   zerolog.Nop(),
		Env:      "test",
		Version:  "test",
	})
}

func (s *HandlersSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](s *HandlersSuite, rec *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *HandlersSuite) errorCode(rec *httptest.ResponseRecorder) string {
	return decode[ErrorResponse](s, rec).Error
}

// seedUmum creates Poli Umum with one doctor and returns their IDs.
func (s *HandlersSuite) seedUmum() (clinicID, doctorID string) {
	rec := s.do(http.MethodPost, "/clinics", CreateClinicRequest{Name: "Poli Umum", Code: "U"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	clinic := decode[ClinicResponse](s, rec)

	rec = s.do(http.MethodPost, "/doctors", CreateDoctorRequest{Name: "dr. Budi Santoso", ClinicID: clinic.ID.String()})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	doctor := decode[DoctorResponse](s, rec)

	return clinic.ID.String(), doctor.ID.String()
}

func (s *HandlersSuite) registerPatient(nik, name string) PatientResponse {
	rec := s.do(http.MethodPost, "/patients", RegisterPatientRequest{NationalID: nik, Name: name, Phone: "0812000000"})
	s.Require().Contains([]int{http.StatusCreated, http.StatusOK}, rec.Code, rec.Body.String())
	return decode[PatientResponse](s, rec)
}

func (s *HandlersSuite) TestQueueFlow() {
	clinicID, doctorID := s.seedUmum()

	var ids []string
	for i, name := range []string{"Ahmad", "Bunga", "Citra"} {
		nik := "317401000000000" + string(rune('1'+i))
		s.registerPatient(nik, name)

		rec := s.do(http.MethodPost, "/visits", CreateVisitRequest{NationalID: nik, ClinicID: clinicID, DoctorID: doctorID})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		v := decode[VisitResponse](s, rec)
		s.Equal(i+1, v.QueueNumber)
		s.Equal("waiting", v.Status)
		ids = append(ids, v.ID.String())
	}

	rec := s.do(http.MethodGet, "/queue/next?clinic_id="+clinicID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("U-004", decode[NextNumberResponse](s, rec).DisplayCode)

	rec = s.do(http.MethodPost, "/visits/"+ids[1]+"/call", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/visits/"+ids[0]+"/call", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("called", decode[VisitResponse](s, rec).Status)

	rec = s.do(http.MethodGet, "/queue/today?clinic_id="+clinicID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	board := decode[BoardResponse](s, rec)
	s.Equal("2026-10-15", board.Date)
	s.True(board.Consistent)
	s.Require().Len(board.Visits, 3)
	s.Equal("U-001", board.Visits[0].DisplayCode)
	s.Equal("U-003", board.Visits[1].DisplayCode)
	s.Equal("U-002", board.Visits[2].DisplayCode)
	s.Equal(visit.Stats{Waiting: 1, Called: 1, Completed: 1, Total: 3}, board.Stats)

	rec = s.do(http.MethodGet, "/queue/now-serving?clinic_id="+clinicID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("U-001", decode[NowServingResponse](s, rec).NowServing.DisplayCode)

	rec = s.do(http.MethodPost, "/visits/"+ids[1]+"/call", nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("invalid_transition", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/visits/"+ids[0]+"/complete", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/visits/"+ids[0]+"/complete", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("completed", decode[VisitResponse](s, rec).Status)

	rec = s.do(http.MethodGet, "/visits?month=2026-10&clinic_id="+clinicID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]VisitResponse](s, rec), 3)

	rec = s.do(http.MethodGet, "/visits/"+ids[2], nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Citra", decode[VisitResponse](s, rec).PatientName)
}

func (s *HandlersSuite) TestPatientEndpoints() {
	rec := s.do(http.MethodPost, "/patients", RegisterPatientRequest{NationalID: "3174010101010001", Name: "Siti", Phone: "0812"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	created := decode[PatientResponse](s, rec)
	s.Equal("RM-000001", created.MedicalRecordNumber)

	rec = s.do(http.MethodPost, "/patients", RegisterPatientRequest{NationalID: "3174010101010001", Name: "siti", Phone: "0899"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(created.ID, decode[PatientResponse](s, rec).ID)

	rec = s.do(http.MethodPost, "/patients", RegisterPatientRequest{NationalID: "3174010101010001", Name: "Budi", Phone: "0812"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("identity_conflict", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/patients", RegisterPatientRequest{NationalID: "12AB", Name: "Siti", Phone: "0812"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid_input", s.errorCode(rec))
	s.Contains(decode[ErrorResponse](s, rec).Details, "national_id")

	rec = s.do(http.MethodGet, "/patients/lookup?national_id=3174010101010001", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("0899", decode[PatientResponse](s, rec).Phone)

	rec = s.do(http.MethodGet, "/patients/lookup?national_id=3174010101019999", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("patient_not_found", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/patients/"+created.ID.String(), nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/patients/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestCreateVisitErrors() {
	clinicID, doctorID := s.seedUmum()
	s.registerPatient("3174010101010002", "Dewi")

	cases := []struct {
		name   string
		body   CreateVisitRequest
		status int
		code   string
	}{
		{"missing fields", CreateVisitRequest{ClinicID: clinicID}, http.StatusBadRequest, "invalid_input"},
		{"unknown patient", CreateVisitRequest{NationalID: "3174010101019999", ClinicID: clinicID, DoctorID: doctorID}, http.StatusNotFound, "patient_not_found"},
		{"unknown clinic", CreateVisitRequest{NationalID: "3174010101010002", ClinicID: uuid.NewString(), DoctorID: doctorID}, http.StatusNotFound, "clinic_not_found"},
		{"unknown doctor", CreateVisitRequest{NationalID: "3174010101010002", ClinicID: clinicID, DoctorID: uuid.NewString()}, http.StatusNotFound, "doctor_not_found"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPost, "/visits", tc.body)
			s.Equal(tc.status, rec.Code, rec.Body.String())
			s.Equal(tc.code, s.errorCode(rec))
		})
	}

	rec := s.do(http.MethodPost, "/visits/"+uuid.NewString()+"/complete", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("visit_not_found", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/visits?month=oktober", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestDirectoryEndpoints() {
	clinicID, doctorID := s.seedUmum()

	rec := s.do(http.MethodPost, "/clinics", CreateClinicRequest{Name: "poli umum", Code: "P"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("clinic_exists", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/schedules", CreateScheduleRequest{DoctorID: doctorID, Day: "Kamis", StartTime: "08:00", EndTime: "12:00"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	sched := decode[ScheduleResponse](s, rec)
	s.Equal("Kamis", sched.Day)

	rec = s.do(http.MethodPost, "/schedules", CreateScheduleRequest{DoctorID: doctorID, Day: "Kamis", StartTime: "13:00", EndTime: "09:00"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/schedules?day=thursday", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]ScheduleResponse](s, rec), 1)

	// 2026-10-15 is a Thursday.
	rec = s.do(http.MethodGet, "/doctors/"+doctorID+"/schedule", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]ScheduleResponse](s, rec), 1)

	rec = s.do(http.MethodGet, "/doctors/"+doctorID+"/schedule?date=2026-10-16", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Empty(decode[[]ScheduleResponse](s, rec))

	rec = s.do(http.MethodDelete, "/clinics/"+clinicID, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("clinic_in_use", s.errorCode(rec))

	rec = s.do(http.MethodDelete, "/doctors/"+doctorID, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/doctors?clinic_id="+clinicID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Empty(decode[[]DoctorResponse](s, rec))

	rec = s.do(http.MethodDelete, "/schedules/"+sched.ID.String(), nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/clinics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]ClinicResponse](s, rec), 1)
}

func (s *HandlersSuite) TestQueueNextUnknownClinic() {
	rec := s.do(http.MethodGet, "/queue/next?clinic_id="+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("clinic_not_found", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/queue/next", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestQueueStream() {
	rec := s.do(http.MethodGet, "/queue/stream", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("text/event-stream", rec.Header().Get("Content-Type"))
	s.Contains(rec.Body.String(), "event: VISIT_CALLED\n")
	s.Contains(rec.Body.String(), `"display_code":"U-002"`)
}

func (s *HandlersSuite) TestOpsEndpoints() {
	rec := s.do(http.MethodGet, "/health/live", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	s.seedUmum()
	rec = s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), `clinic_queue_http_requests_total{method="POST",route="/clinics`), rec.Body.String())
	s.Contains(rec.Body.String(), `status="201"`)
}

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	cases := []struct {
		name   string
		checks []DependencyCheck
		status int
		want   string
	}{
		{"all up", []DependencyCheck{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: up}}, http.StatusOK, "ok"},
		{"optional down", []DependencyCheck{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"critical down", []DependencyCheck{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: up}}, http.StatusServiceUnavailable, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.checks, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp ReadinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tc.want {
				t.Fatalf("readiness = %q, want %q", resp.Status, tc.want)
			}
		})
	}
}
