package patient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type RegistrySuite struct {
	suite.Suite
	repo     *InMemoryRepository
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.repo = NewInMemoryRepository()
	s.registry = NewRegistry(s.repo, zerolog.Nop())
	s.ctx = context.Background()
}

func siti() Registration {
	return Registration{
		NationalID: "3174012345670001",
		Name:       "Siti Rahmawati",
		BirthDate:  "1990-04-12",
		Address:    "Jl. Melati 4, Jakarta",
		Phone:      "081234567890",
	}
}

func (s *RegistrySuite) TestRegister() {
	s.Run("creates identity with medical record number", func() {
		p, created, err := s.registry.Register(s.ctx, siti())
		s.Require().NoError(err)
		s.True(created)
		s.Equal("Siti Rahmawati", p.Name)
		s.Equal("RM-000001", p.MedicalRecordNumber)
	})

	s.Run("reuses identity and refreshes contact fields", func() {
		reg := siti()
		reg.Name = "  siti   rahmawati "
		reg.Address = "Jl. Kenanga 9, Depok"
		reg.Phone = "089900001111"

		p, created, err := s.registry.Register(s.ctx, reg)
		s.Require().NoError(err)
		s.False(created)
		s.Equal("Siti Rahmawati", p.Name)
		s.Equal("Jl. Kenanga 9, Depok", p.Address)
		s.Equal("089900001111", p.Phone)
		s.Equal("RM-000001", p.MedicalRecordNumber)
	})

	s.Run("rejects a different name for the same national id", func() {
		reg := siti()
		reg.Name = "Budi Santoso"
		reg.Address = "somewhere else"

		_, _, err := s.registry.Register(s.ctx, reg)
		s.Require().ErrorIs(err, ErrIdentityConflict)

		stored, err := s.registry.Resolve(s.ctx, reg.NationalID)
		s.Require().NoError(err)
		s.Equal("Siti Rahmawati", stored.Name)
		s.Equal("Jl. Kenanga 9, Depok", stored.Address)
	})
}

func (s *RegistrySuite) TestRegisterValidation() {
	cases := map[string]func(*Registration){
		"short national id":       func(r *Registration) { r.NationalID = "12345" },
		"non numeric national id": func(r *Registration) { r.NationalID = "31740123456700AB" },
		"missing name":            func(r *Registration) { r.Name = "   " },
		"missing phone":           func(r *Registration) { r.Phone = "" },
		"malformed birth date":    func(r *Registration) { r.BirthDate = "12/04/1990" },
	}

	for name, mutate := range cases {
		s.Run(name, func() {
			reg := siti()
			mutate(&reg)
			_, _, err := s.registry.Register(s.ctx, reg)
			s.Require().ErrorIs(err, ErrInvalidInput)
		})
	}
}

func (s *RegistrySuite) TestResolve() {
	s.Run("unknown national id", func() {
		_, err := s.registry.Resolve(s.ctx, "3174000000000000")
		s.Require().ErrorIs(err, ErrPatientNotFound)
	})

	s.Run("invalid national id", func() {
		_, err := s.registry.Resolve(s.ctx, "abc")
		s.Require().ErrorIs(err, ErrInvalidInput)
	})

	s.Run("get by id", func() {
		p, _, err := s.registry.Register(s.ctx, siti())
		s.Require().NoError(err)

		got, err := s.registry.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.NationalID, got.NationalID)

		_, err = s.registry.Get(s.ctx, uuid.New())
		s.Require().ErrorIs(err, ErrPatientNotFound)
	})
}

// TestConcurrentFirstRegistration verifies that simultaneous first
// registrations for one national id converge on a single identity.
func (s *RegistrySuite) TestConcurrentFirstRegistration() {
	const goroutines = 20

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		ids     sync.Map
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, isNew, err := s.registry.Register(s.ctx, siti())
			if err != nil {
				return
			}
			if isNew {
				created.Add(1)
			}
			ids.Store(p.ID, struct{}{})
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())

	distinct := 0
	ids.Range(func(_, _ any) bool {
		distinct++
		return true
	})
	s.Equal(1, distinct)
}

func TestSameName(t *testing.T) {
	suite.Run(t, new(sameNameSuite))
}

type sameNameSuite struct{ suite.Suite }

func (s *sameNameSuite) TestCases() {
	s.True(SameName("Siti Rahmawati", "siti rahmawati"))
	s.True(SameName(" Siti  Rahmawati", "Siti Rahmawati "))
	s.False(SameName("Siti Rahmawati", "Siti Rahmawat"))
	s.False(SameName("Siti Rahmawati", "Budi Santoso"))
}
