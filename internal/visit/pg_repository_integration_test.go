//go:build integration

package visit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/testutil/containers"
)

type PgRepositorySuite struct {
	suite.Suite
	pg   *containers.PostgresContainer
	ctx  context.Context
	repo *PgRepository

	patients *patient.Registry
	dir      *directory.Service
	clinic   *directory.Clinic
	doctor   *directory.Doctor
	nik      int
}

func TestPgRepositorySuite(t *testing.T) {
	suite.Run(t, new(PgRepositorySuite))
}

func (s *PgRepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()
	s.repo = NewPgRepository(s.pg.Pool)
	s.patients = patient.NewRegistry(patient.NewPgRepository(s.pg.Pool), zerolog.Nop())
}

func (s *PgRepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
	s.dir = directory.NewService(directory.NewPgRepository(s.pg.Pool), time.Minute, zerolog.Nop())

	var err error
	s.clinic, err = s.dir.CreateClinic(s.ctx, "Poli Umum", "U")
	s.Require().NoError(err)
	s.doctor, err = s.dir.CreateDoctor(s.ctx, "dr. Budi Santoso", s.clinic.ID)
	s.Require().NoError(err)
}

func (s *PgRepositorySuite) newVisit(date string) NewVisit {
	s.nik++
	p, _, err := s.patients.Register(s.ctx, patient.Registration{
		NationalID: fmt.Sprintf("3174%012d", s.nik),
		Name:       fmt.Sprintf("Pasien %d", s.nik),
		Phone:      "0812000000",
	})
	s.Require().NoError(err)

	return NewVisit{
		PatientID:   p.ID,
		ClinicID:    s.clinic.ID,
		DoctorID:    s.doctor.ID,
		Date:        date,
		Prefix:      s.clinic.Code,
		PatientName: p.Name,
		ClinicName:  s.clinic.Name,
		DoctorName:  s.doctor.Name,
	}
}

func (s *PgRepositorySuite) TestScenario() {
	var ids []uuid.UUID
	for i := 1; i <= 3; i++ {
		v, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
		s.Require().NoError(err)
		s.Equal(i, v.QueueNumber)
		s.Equal(fmt.Sprintf("U-%03d", i), v.DisplayCode)
		s.Equal(StatusWaiting, v.Status)
		ids = append(ids, v.ID)
	}

	_, demoted, err := s.repo.Call(s.ctx, ids[1])
	s.Require().NoError(err)
	s.Empty(demoted)

	called, demoted, err := s.repo.Call(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Equal(StatusCalled, called.Status)
	s.Require().Len(demoted, 1)
	s.Equal("U-002", demoted[0].DisplayCode)
	s.Equal(StatusCompleted, demoted[0].Status)

	visits, err := s.repo.ListByDate(s.ctx, "2026-10-15", &s.clinic.ID)
	s.Require().NoError(err)
	SortForDisplay(visits)
	s.Equal([]string{"U-001", "U-003", "U-002"}, codes(visits))
}

func (s *PgRepositorySuite) TestConcurrentInsertsAreGapFree() {
	const n = 40

	inputs := make([]NewVisit, n)
	for i := range inputs {
		inputs[i] = s.newVisit("2026-10-15")
	}

	numbers := make([]int, n)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range inputs {
		g.Go(func() error {
			v, err := s.repo.InsertNext(ctx, inputs[i])
			if err != nil {
				return err
			}
			numbers[i] = v.QueueNumber
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	seen := make(map[int]bool, n)
	for _, num := range numbers {
		s.False(seen[num], "duplicate number %d", num)
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		s.True(seen[i], "missing number %d", i)
	}

	count, err := s.repo.CountInScope(s.ctx, Scope{ClinicID: s.clinic.ID, Date: "2026-10-15"})
	s.Require().NoError(err)
	s.Equal(n, count)
}

func (s *PgRepositorySuite) TestRolledBackInsertLeavesNoGap() {
	_, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)

	broken := s.newVisit("2026-10-15")
	broken.PatientID = uuid.New()
	_, err = s.repo.InsertNext(s.ctx, broken)
	s.Require().Error(err)
	s.True(db.IsForeignKeyViolation(err))

	v, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)
	s.Equal(2, v.QueueNumber)
}

func (s *PgRepositorySuite) TestCounterReconcilesWithStoredVisits() {
	for range 3 {
		_, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
		s.Require().NoError(err)
	}
	_, err := s.pg.Pool.Exec(s.ctx, `DELETE FROM queue_counters`)
	s.Require().NoError(err)

	v, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)
	s.Equal(4, v.QueueNumber)
}

func (s *PgRepositorySuite) TestConcurrentCallsLeaveOneCalled() {
	const n = 15

	ids := make([]uuid.UUID, n)
	for i := range ids {
		v, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
		s.Require().NoError(err)
		ids[i] = v.ID
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, _, err := s.repo.Call(s.ctx, id)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	visits, err := s.repo.ListByDate(s.ctx, "2026-10-15", &s.clinic.ID)
	s.Require().NoError(err)
	stats := CountStats(visits)
	s.Equal(1, stats.Called)
	s.Equal(n-1, stats.Completed)
}

func (s *PgRepositorySuite) TestSecondCalledRowIsRejectedByStorage() {
	a, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)
	b, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)

	_, _, err = s.repo.Call(s.ctx, a.ID)
	s.Require().NoError(err)

	_, err = s.pg.Pool.Exec(s.ctx, `UPDATE visits SET status = 'called' WHERE id = $1`, b.ID)
	s.Require().Error(err)
	s.True(db.IsUniqueViolation(err, "visits_one_called_per_scope"))
}

func (s *PgRepositorySuite) TestCompleteAndCloseStale() {
	waiting, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-14"))
	s.Require().NoError(err)
	called, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-14"))
	s.Require().NoError(err)
	today, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)

	_, _, err = s.repo.Call(s.ctx, called.ID)
	s.Require().NoError(err)

	done, changed, err := s.repo.Complete(s.ctx, today.ID)
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(StatusCompleted, done.Status)

	_, changed, err = s.repo.Complete(s.ctx, today.ID)
	s.Require().NoError(err)
	s.False(changed)

	closed, err := s.repo.CloseStale(s.ctx, "2026-10-15")
	s.Require().NoError(err)
	s.Len(closed, 2)

	got, err := s.repo.GetByID(s.ctx, waiting.ID)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, got.Status)

	got, err = s.repo.GetByID(s.ctx, called.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, got.Status)
	s.NotNil(got.CompletedAt)

	_, _, err = s.repo.Complete(s.ctx, waiting.ID)
	s.Require().ErrorIs(err, ErrInvalidTransition)

	_, err = s.repo.GetByID(s.ctx, uuid.New())
	s.Require().ErrorIs(err, ErrVisitNotFound)
}

func (s *PgRepositorySuite) TestListFilters() {
	_, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)
	_, err = s.repo.InsertNext(s.ctx, s.newVisit("2026-11-01"))
	s.Require().NoError(err)

	visits, err := s.repo.List(s.ctx, Filter{Month: "2026-10"})
	s.Require().NoError(err)
	s.Len(visits, 1)

	visits, err = s.repo.List(s.ctx, Filter{DoctorID: &s.doctor.ID})
	s.Require().NoError(err)
	s.Require().Len(visits, 2)
	s.Equal("2026-11-01", visits[0].RegistrationDate)
}

func (s *PgRepositorySuite) TestInsertEvent() {
	v, err := s.repo.InsertNext(s.ctx, s.newVisit("2026-10-15"))
	s.Require().NoError(err)

	s.Require().NoError(s.repo.InsertEvent(s.ctx, EventLog{
		EventType: EventVisitCreated,
		VisitID:   &v.ID,
		Payload:   []byte(`{"display_code":"U-001"}`),
		CreatedAt: time.Now(),
	}))

	var n int
	s.Require().NoError(s.pg.Pool.QueryRow(s.ctx, `SELECT count(*) FROM visit_events WHERE visit_id = $1`, v.ID).Scan(&n))
	s.Equal(1, n)
}
