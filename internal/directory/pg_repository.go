package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(&d.ID, &d.Name, &d.ClinicID, &d.ClinicName, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var (
		s   Schedule
		day int16
	)

	err := row.Scan(&s.ID, &s.DoctorID, &s.DoctorName, &day, &s.StartTime, &s.EndTime, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.Day = time.Weekday(day)
	return &s, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Clinics

func (r *PgRepository) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, code, created_at, updated_at
		FROM clinics
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClinic)
}

func (r *PgRepository) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, code, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) CreateClinic(ctx context.Context, c Clinic) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clinics (id, name, code, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, code, created_at, updated_at
	`, uuid.New(), c.Name, c.Code)

	created, err := scanClinic(row)
	if err != nil {
		if db.IsUniqueViolation(err, "clinics_name_key") {
			return nil, ErrClinicExists
		}
		return nil, fmt.Errorf("insert clinic: %w", err)
	}
	return created, nil
}

func (r *PgRepository) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrClinicInUse
		}
		return fmt.Errorf("delete clinic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClinicNotFound
	}
	return nil
}

// Doctors

const doctorSelect = `
	SELECT d.id, d.name, d.clinic_id, c.name, d.active, d.created_at, d.updated_at
	FROM doctors d
	JOIN clinics c ON c.id = d.clinic_id
`

func (r *PgRepository) ListDoctors(ctx context.Context, clinicID *uuid.UUID) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, doctorSelect+`
		WHERE d.active
		  AND ($1::uuid IS NULL OR d.clinic_id = $1)
		ORDER BY d.name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, doctorSelect+`WHERE d.id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	id := uuid.New()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, clinic_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, now(), now())
	`, id, d.Name, d.ClinicID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrClinicNotFound
		}
		return nil, fmt.Errorf("insert doctor: %w", err)
	}

	return r.GetDoctor(ctx, id)
}

func (r *PgRepository) DeactivateDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET active = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// Schedules

func (r *PgRepository) ListSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	var day *int16
	if f.Day != nil {
		d := int16(*f.Day)
		day = &d
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.doctor_id, d.name, s.weekday, s.start_time, s.end_time, s.created_at
		FROM doctor_schedules s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE ($1::uuid IS NULL OR s.doctor_id = $1)
		  AND ($2::smallint IS NULL OR s.weekday = $2)
		ORDER BY s.weekday, s.start_time
	`, f.DoctorID, day)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSchedule)
}

func (r *PgRepository) CreateSchedule(ctx context.Context, s Schedule) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO doctor_schedules (id, doctor_id, weekday, start_time, end_time, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			RETURNING id, doctor_id, weekday, start_time, end_time, created_at
		)
		SELECT i.id, i.doctor_id, d.name, i.weekday, i.start_time, i.end_time, i.created_at
		FROM inserted i
		JOIN doctors d ON d.id = i.doctor_id
	`, uuid.New(), s.DoctorID, int16(s.Day), s.StartTime, s.EndTime)

	created, err := scanSchedule(row)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return created, nil
}

func (r *PgRepository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctor_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}
