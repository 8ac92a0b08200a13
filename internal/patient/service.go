package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry resolves and registers patient identities keyed by national ID.
type Registry struct {
	repo Repository
	log  zerolog.Logger
}

func NewRegistry(repo Repository, log zerolog.Logger) *Registry {
	return &Registry{
		repo: repo,
		log:  log.With().Str("component", "identity_registry").Logger(),
	}
}

// Register creates the identity on first visit and refreshes contact fields
// afterwards. It never renames an existing identity.
func (r *Registry) Register(ctx context.Context, reg Registration) (*Patient, bool, error) {
	reg = normalizeRegistration(reg)
	if err := validateRegistration(reg); err != nil {
		return nil, false, err
	}

	p, created, err := r.repo.Register(ctx, reg)
	if err != nil {
		if errors.Is(err, ErrIdentityConflict) {
			r.log.Warn().
				Str("national_id", maskNationalID(reg.NationalID)).
				Msg("registration rejected: name does not match stored identity")
			return nil, false, err
		}
		return nil, false, fmt.Errorf("register patient: %w", err)
	}

	r.log.Info().
		Str("patient_id", p.ID.String()).
		Str("mrn", p.MedicalRecordNumber).
		Bool("created", created).
		Msg("patient registered")

	return p, created, nil
}

// Resolve returns the identity bound to nationalID or ErrPatientNotFound.
func (r *Registry) Resolve(ctx context.Context, nationalID string) (*Patient, error) {
	nationalID = strings.TrimSpace(nationalID)
	if !ValidNationalID(nationalID) {
		return nil, fmt.Errorf("%w: national id must be %d digits", ErrInvalidInput, NationalIDLength)
	}

	p, err := r.repo.GetByNationalID(ctx, nationalID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	return p, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func normalizeRegistration(reg Registration) Registration {
	reg.NationalID = strings.TrimSpace(reg.NationalID)
	reg.Name = normalizeName(reg.Name)
	reg.BirthDate = strings.TrimSpace(reg.BirthDate)
	reg.Address = strings.TrimSpace(reg.Address)
	reg.Phone = strings.TrimSpace(reg.Phone)
	return reg
}

func validateRegistration(reg Registration) error {
	if !ValidNationalID(reg.NationalID) {
		return fmt.Errorf("%w: national id must be %d digits", ErrInvalidInput, NationalIDLength)
	}
	if reg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if reg.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if reg.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, reg.BirthDate); err != nil {
			return fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalidInput)
		}
	}
	return nil
}

// maskNationalID keeps NIKs out of the logs beyond the last four digits.
func maskNationalID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
