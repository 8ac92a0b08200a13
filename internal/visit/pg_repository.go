package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
)

const visitColumns = `id, patient_id, clinic_id, doctor_id, registration_date, queue_number, display_code, status,
	patient_name, clinic_name, doctor_name, created_at, updated_at, called_at, completed_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.ClinicID,
		&v.DoctorID,
		&v.RegistrationDate,
		&v.QueueNumber,
		&v.DisplayCode,
		&v.Status,
		&v.PatientName,
		&v.ClinicName,
		&v.DoctorName,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.CalledAt,
		&v.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]Visit, error) {
	defer rows.Close()

	var result []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

// lockScope takes the row lock on the scope counter. Inserts, calls and
// completes of one clinic-day queue behind it.
func lockScope(ctx context.Context, tx pgx.Tx, scope Scope) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_counters (clinic_id, registration_date, last_number, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (clinic_id, registration_date) DO NOTHING
	`, scope.ClinicID, scope.Date)
	if err != nil {
		return fmt.Errorf("ensure scope counter: %w", err)
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT last_number
		FROM queue_counters
		WHERE clinic_id = $1 AND registration_date = $2
		FOR UPDATE
	`, scope.ClinicID, scope.Date).Scan(&n)
	if err != nil {
		return fmt.Errorf("lock scope: %w", err)
	}
	return nil
}

// Interface methods

// InsertNext advances the scope counter and inserts the visit in one
// transaction. A rollback rolls the counter back too, so numbers never skip.
// The counter is reconciled against the visits already stored, which keeps
// numbering correct even if a counter row is missing.
func (r *PgRepository) InsertNext(ctx context.Context, nv NewVisit) (*Visit, error) {
	var result *Visit

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var number int
		err := tx.QueryRow(ctx, `
			INSERT INTO queue_counters (clinic_id, registration_date, last_number, updated_at)
			VALUES ($1, $2,
				(SELECT count(*) FROM visits WHERE clinic_id = $1 AND registration_date = $2) + 1,
				now())
			ON CONFLICT (clinic_id, registration_date) DO UPDATE
			SET last_number = GREATEST(
					queue_counters.last_number,
					(SELECT count(*) FROM visits v
					 WHERE v.clinic_id = EXCLUDED.clinic_id
					   AND v.registration_date = EXCLUDED.registration_date)
				) + 1,
				updated_at = now()
			RETURNING last_number
		`, nv.ClinicID, nv.Date).Scan(&number)
		if err != nil {
			return fmt.Errorf("advance queue counter: %w", err)
		}

		v, err := scanVisit(tx.QueryRow(ctx, `
			INSERT INTO visits (id, patient_id, clinic_id, doctor_id, registration_date, queue_number, display_code, status,
				patient_name, clinic_name, doctor_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			RETURNING `+visitColumns,
			uuid.New(), nv.PatientID, nv.ClinicID, nv.DoctorID, nv.Date, number,
			FormatDisplayCode(nv.Prefix, number), StatusWaiting,
			nv.PatientName, nv.ClinicName, nv.DoctorName,
		))
		if err != nil {
			if db.IsUniqueViolation(err, "visits_scope_number_key") {
				return ErrQueueNumberTaken
			}
			return fmt.Errorf("insert visit: %w", err)
		}

		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountInScope(ctx context.Context, scope Scope) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM visits
		WHERE clinic_id = $1 AND registration_date = $2
	`, scope.ClinicID, scope.Date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

// lockVisit reads the visit, locks its scope and then the visit row itself.
// The scope of a visit never changes, so the first unlocked read is safe.
func lockVisit(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(tx.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	if err := lockScope(ctx, tx, v.Scope()); err != nil {
		return nil, err
	}

	return scanVisit(tx.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1 FOR UPDATE`, id))
}

func (r *PgRepository) Call(ctx context.Context, id uuid.UUID) (*Visit, []Visit, error) {
	var (
		result  *Visit
		demoted []Visit
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		v, err := lockVisit(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canCall(v.Status) {
			return ErrInvalidTransition
		}
		if v.Status == StatusCalled {
			result = v
			return nil
		}

		rows, err := tx.Query(ctx, `
			UPDATE visits
			SET status = $4,
			    completed_at = now(),
			    updated_at = now()
			WHERE clinic_id = $1
			  AND registration_date = $2
			  AND status = $3
			  AND id <> $5
			RETURNING `+visitColumns,
			v.ClinicID, v.RegistrationDate, StatusCalled, StatusCompleted, v.ID,
		)
		if err != nil {
			return fmt.Errorf("demote called visits: %w", err)
		}
		demoted, err = collectVisits(rows)
		if err != nil {
			return fmt.Errorf("demote called visits: %w", err)
		}

		result, err = scanVisit(tx.QueryRow(ctx, `
			UPDATE visits
			SET status = $2,
			    called_at = now(),
			    updated_at = now()
			WHERE id = $1 AND status = $3
			RETURNING `+visitColumns,
			v.ID, StatusCalled, StatusWaiting,
		))
		if err != nil {
			return fmt.Errorf("promote visit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return result, demoted, nil
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID) (*Visit, bool, error) {
	var (
		result  *Visit
		changed bool
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		v, err := lockVisit(ctx, tx, id)
		if err != nil {
			return err
		}

		changed, err = completeTransition(v.Status)
		if err != nil {
			return err
		}
		if !changed {
			result = v
			return nil
		}

		result, err = scanVisit(tx.QueryRow(ctx, `
			UPDATE visits
			SET status = $2,
			    completed_at = now(),
			    updated_at = now()
			WHERE id = $1
			RETURNING `+visitColumns,
			v.ID, StatusCompleted,
		))
		if err != nil {
			return fmt.Errorf("complete visit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, changed, nil
}

func (r *PgRepository) ListByDate(ctx context.Context, date string, clinicID *uuid.UUID) ([]Visit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE registration_date = $1
		  AND ($2::uuid IS NULL OR clinic_id = $2)
		ORDER BY clinic_name, queue_number
	`, date, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list visits by date: %w", err)
	}
	return collectVisits(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Visit, error) {
	f = f.normalized()

	var month, date *string
	if f.Month != "" {
		month = &f.Month
	}
	if f.Date != "" {
		date = &f.Date
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE ($1::text IS NULL OR registration_date LIKE $1 || '-%')
		  AND ($2::text IS NULL OR registration_date = $2)
		  AND ($3::uuid IS NULL OR clinic_id = $3)
		  AND ($4::uuid IS NULL OR doctor_id = $4)
		ORDER BY registration_date DESC, clinic_name, queue_number
		LIMIT $5 OFFSET $6
	`, month, date, f.ClinicID, f.DoctorID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return collectVisits(rows)
}

// CloseStale needs no scope lock: it only touches past days, and row locks
// taken by a concurrent call or complete make the update wait and recheck.
func (r *PgRepository) CloseStale(ctx context.Context, before string) ([]Visit, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE visits
		SET status = CASE status WHEN $2::text THEN $4::text ELSE $5::text END,
		    completed_at = CASE status WHEN $3::text THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE registration_date < $1
		  AND status IN ($2::text, $3::text)
		RETURNING `+visitColumns,
		before, StatusWaiting, StatusCalled, StatusCancelled, StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("close stale visits: %w", err)
	}
	return collectVisits(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO visit_events (event_type, visit_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.EventType, ev.VisitID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert visit event: %w", err)
	}
	return nil
}
