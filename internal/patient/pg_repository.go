package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patientColumns = `id, national_id, name, birth_date, address, phone, medical_record_number, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.NationalID,
		&p.Name,
		&p.BirthDate,
		&p.Address,
		&p.Phone,
		&p.MedicalRecordNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE national_id = $1
	`, nationalID)
	return scanPatient(row)
}

// Register relies on the unique national_id constraint: the insert either
// wins, or the existing row is locked and checked. Concurrent first
// registrations therefore converge on one identity.
func (r *PgRepository) Register(ctx context.Context, reg Registration) (*Patient, bool, error) {
	var (
		result  *Patient
		created bool
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO patients (id, national_id, name, birth_date, address, phone, medical_record_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'RM-' || lpad(nextval('medical_record_seq')::text, 6, '0'), now(), now())
			ON CONFLICT (national_id) DO NOTHING
			RETURNING `+patientColumns+`
		`, uuid.New(), reg.NationalID, reg.Name, reg.BirthDate, reg.Address, reg.Phone)

		p, err := scanPatient(row)
		if err == nil {
			result, created = p, true
			return nil
		}
		if !errors.Is(err, ErrPatientNotFound) {
			return fmt.Errorf("insert patient: %w", err)
		}

		existing, err := scanPatient(tx.QueryRow(ctx, `
			SELECT `+patientColumns+`
			FROM patients
			WHERE national_id = $1
			FOR UPDATE
		`, reg.NationalID))
		if err != nil {
			return fmt.Errorf("lock patient: %w", err)
		}

		if !SameName(existing.Name, reg.Name) {
			return ErrIdentityConflict
		}

		result, err = scanPatient(tx.QueryRow(ctx, `
			UPDATE patients
			SET birth_date = $2,
			    address = $3,
			    phone = $4,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+patientColumns+`
		`, existing.ID, reg.BirthDate, reg.Address, reg.Phone))
		if err != nil {
			return fmt.Errorf("refresh patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}
