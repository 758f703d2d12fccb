package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgExclusionViolation is SQLSTATE 23P01, raised by the no-double-booking
// exclusion constraint.
const pgExclusionViolation = "23P01"

// PgxPool is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	var siteID *uuid.UUID

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&siteID,
		&r.Payload,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.SiteID = siteID
	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var siteID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&siteID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Motive,
		&a.Source,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SiteID = siteID
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// ListRules returns the doctor's rules. With a site filter, site-agnostic
// rules (NULL site_id) still apply.
func (r *PgRepository) ListRules(ctx context.Context, doctorID uuid.UUID, siteID *uuid.UUID) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, site_id, payload, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1
		  AND ($2::uuid IS NULL OR site_id IS NULL OR site_id = $2)
		ORDER BY created_at
	`, doctorID, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	id := rule.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_rules (id, doctor_id, site_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, doctor_id, site_id, payload, created_at, updated_at
	`, id, rule.DoctorID, rule.SiteID, rule.Payload)

	return scanRule(row)
}

func (r *PgRepository) DeleteRule(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE id = $1 AND doctor_id = $2
	`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PgRepository) ListBookedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'booked'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, site_id, start_time, end_time, status, motive, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'booked', $7, $8, now(), now())
		RETURNING id, doctor_id, patient_id, site_id, start_time, end_time, status, motive, source, created_at, updated_at
	`, id, appt.DoctorID, appt.PatientID, appt.SiteID, appt.Start, appt.End, appt.Motive, appt.Source)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return nil, ErrBookingOverlap
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, site_id, start_time, end_time, status, motive, source, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, site_id, start_time, end_time, status, motive, source, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListBookedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, site_id, start_time, end_time, status, motive, source, created_at, updated_at
		FROM appointments
		WHERE status = 'booked'
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return err
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
