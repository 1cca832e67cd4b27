package mchms

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AliveFilter reports which cohort members were alive at the given instant.
type AliveFilter interface {
	AliveAsOf(ctx context.Context, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]bool, error)
}

// EnrollmentLookup returns the active enrollment in a program, per patient,
// at the given instant. Patients without one are absent from the result.
type EnrollmentLookup interface {
	ActiveEnrollments(ctx context.Context, programID uuid.UUID, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]*Enrollment, error)
}

// ObservationLookup returns the most recent observation of a concept, per
// patient, recorded at or before the given instant. One call serves the whole
// cohort.
type ObservationLookup interface {
	LastObservations(ctx context.Context, conceptCode string, cohort []uuid.UUID, at time.Time) (map[uuid.UUID]*Observation, error)
}
