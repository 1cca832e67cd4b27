package mchms

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/mchms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

// NewAliveFilterPG returns an AliveFilter backed by the patient table.
func NewAliveFilterPG(pool *pgxpool.Pool) AliveFilter {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *patientRepoPG) AliveAsOf(ctx context.Context, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id FROM patient
		WHERE id = ANY($1) AND NOT voided
			AND (death_date IS NULL OR death_date > $2)`,
		cohort, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alive := make(map[uuid.UUID]bool, len(cohort))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		alive[id] = true
	}
	return alive, rows.Err()
}

// =========== Enrollment Repository ===========

type enrollmentRepoPG struct{ pool *pgxpool.Pool }

// NewEnrollmentLookupPG returns an EnrollmentLookup backed by the
// patient_program table.
func NewEnrollmentLookupPG(pool *pgxpool.Pool) EnrollmentLookup {
	return &enrollmentRepoPG{pool: pool}
}

func (r *enrollmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *enrollmentRepoPG) ActiveEnrollments(ctx context.Context, programID uuid.UUID, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]*Enrollment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ON (patient_id) id, patient_id, program_id, date_enrolled, date_completed
		FROM patient_program
		WHERE program_id = $1 AND patient_id = ANY($2) AND NOT voided
			AND date_enrolled <= $3
			AND (date_completed IS NULL OR date_completed > $3)
		ORDER BY patient_id, date_enrolled DESC`,
		programID, cohort, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]*Enrollment)
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.PatientID, &e.ProgramID, &e.DateEnrolled, &e.DateEnded); err != nil {
			return nil, err
		}
		out[e.PatientID] = &e
	}
	return out, rows.Err()
}

// =========== Observation Repository ===========

type observationRepoPG struct{ pool *pgxpool.Pool }

// NewObservationLookupPG returns an ObservationLookup backed by the obs table.
func NewObservationLookupPG(pool *pgxpool.Pool) ObservationLookup {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *observationRepoPG) LastObservations(ctx context.Context, conceptCode string, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]*Observation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ON (patient_id) id, patient_id, concept_code, value_coded, value_datetime, obs_datetime
		FROM obs
		WHERE concept_code = $1 AND patient_id = ANY($2) AND NOT voided
			AND obs_datetime <= $3
		ORDER BY patient_id, obs_datetime DESC, created_at DESC`,
		conceptCode, cohort, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]*Observation)
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.PatientID, &o.ConceptCode, &o.ValueCoded, &o.ValueDatetime, &o.ObsDatetime); err != nil {
			return nil, err
		}
		out[o.PatientID] = &o
	}
	return out, rows.Err()
}
