package visit_test

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks EventPublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit/mocks"
)

type PublisherSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	publisher *mocks.MockEventPublisher
	repo      *visit.InMemoryRepository
	service   *visit.Service
	input     visit.CreateVisitInput
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.repo = visit.NewInMemoryRepository()

	patients := patient.NewRegistry(patient.NewInMemoryRepository(), zerolog.Nop())
	dir := directory.NewService(directory.NewInMemoryRepository(), time.Minute, zerolog.Nop())

	clinic, err := dir.CreateClinic(s.ctx, "Poli Anak", "A")
	s.Require().NoError(err)
	doctor, err := dir.CreateDoctor(s.ctx, "dr. Sinta", clinic.ID)
	s.Require().NoError(err)
	p, _, err := patients.Register(s.ctx, patient.Registration{
		NationalID: "3201010101010001",
		Name:       "Raka",
		Phone:      "081299990000",
	})
	s.Require().NoError(err)

	s.input = visit.CreateVisitInput{NationalID: p.NationalID, ClinicID: clinic.ID, DoctorID: doctor.ID}
	s.service = visit.NewService(s.repo, patients, dir, visit.WithPublisher(s.publisher))
}

func (s *PublisherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PublisherSuite) TestPublishesLifecycle() {
	var got []visit.Event
	s.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev visit.Event) error {
			got = append(got, ev)
			return nil
		}).
		Times(3)

	v, err := s.service.CreateVisit(s.ctx, s.input)
	s.Require().NoError(err)
	_, err = s.service.Call(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.service.Complete(s.ctx, v.ID)
	s.Require().NoError(err)

	s.Require().Len(got, 3)
	s.Equal(visit.EventVisitCreated, got[0].Type)
	s.Equal(visit.StatusWaiting, got[0].Status)
	s.Equal("A-001", got[0].DisplayCode)
	s.Equal(visit.EventVisitCalled, got[1].Type)
	s.Equal(visit.EventVisitCompleted, got[2].Type)
	s.Equal(v.ClinicID, got[2].ClinicID)
}

func (s *PublisherSuite) TestPublishFailureDoesNotFailOperation() {
	s.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(errors.New("redis unavailable")).
		Times(1)

	v, err := s.service.CreateVisit(s.ctx, s.input)
	s.Require().NoError(err)
	s.Equal("A-001", v.DisplayCode)
	s.Len(s.repo.Events(), 1)
}

func (s *PublisherSuite) TestIdempotentCompletePublishesOnce() {
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	v, err := s.service.CreateVisit(s.ctx, s.input)
	s.Require().NoError(err)
	_, err = s.service.Complete(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.service.Complete(s.ctx, v.ID)
	s.Require().NoError(err)
}
