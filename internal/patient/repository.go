package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrIdentityConflict = errors.New("national id is already registered under a different name")
	ErrInvalidInput     = errors.New("invalid patient registration")
)

// Repository contains all DB interactions needed by the registry.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Patient, error)

	// Register inserts a new identity or, under a row lock, refreshes the
	// contact fields of the existing one. The bool is true when a new
	// patient was created. A name mismatch returns ErrIdentityConflict and
	// leaves the stored record untouched.
	Register(ctx context.Context, reg Registration) (*Patient, bool, error)
}
