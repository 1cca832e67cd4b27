package mchms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/mchms/internal/domain/metadata"
	"github.com/ehr/mchms/internal/platform/metrics"
)

// Aggregator resolves per-patient facts for a cohort with a fixed number of
// batched collaborator reads.
type Aggregator struct {
	alive        AliveFilter
	enrollments  EnrollmentLookup
	observations ObservationLookup
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewAggregator(alive AliveFilter, enrollments EnrollmentLookup, observations ObservationLookup, m *metrics.Metrics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		alive:        alive,
		enrollments:  enrollments,
		observations: observations,
		metrics:      m,
		logger:       logger,
	}
}

// Collect builds PatientFacts for every cohort member and the eligible subset.
// Delivery dates recorded before enrollment are discarded.
func (a *Aggregator) Collect(ctx context.Context, cohort []uuid.UUID, asOf time.Time, dict *metadata.Dictionary) (*CohortFacts, error) {
	out := &CohortFacts{
		Facts:    make(map[uuid.UUID]*PatientFacts, len(cohort)),
		Eligible: make(map[uuid.UUID]bool),
	}
	for _, id := range cohort {
		out.Facts[id] = &PatientFacts{PatientID: id}
	}
	if len(cohort) == 0 {
		return out, nil
	}

	start := time.Now()
	aliveSet, err := a.alive.AliveAsOf(ctx, cohort, asOf)
	a.metrics.ObserveLookupLatency("alive", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("alive filter: %w", err)
	}
	alive := make([]uuid.UUID, 0, len(aliveSet))
	for _, id := range cohort {
		if aliveSet[id] {
			out.Facts[id].Alive = true
			alive = append(alive, id)
		}
	}
	if len(alive) == 0 {
		return out, nil
	}

	start = time.Now()
	enrollments, err := a.enrollments.ActiveEnrollments(ctx, dict.MCHMSProgram, alive, asOf)
	a.metrics.ObserveLookupLatency("enrollment", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("active enrollment lookup: %w", err)
	}
	enrolled := make([]uuid.UUID, 0, len(enrollments))
	for _, id := range alive {
		e, ok := enrollments[id]
		if !ok || e == nil {
			continue
		}
		f := out.Facts[id]
		f.HasActiveEnrollment = true
		enrolledAt := e.DateEnrolled
		f.EnrollmentDate = &enrolledAt
		enrolled = append(enrolled, id)
	}
	if len(enrolled) == 0 {
		return out, nil
	}

	statuses, testDates, deliveries, err := a.lastObservations(ctx, enrolled, asOf, dict)
	if err != nil {
		return nil, err
	}

	for _, id := range enrolled {
		f := out.Facts[id]
		f.LastStatus = statuses[id].Coded()
		f.LastTestDate = testDates[id].Datetime()
		f.LastDeliveryDate = deliveries[id].Datetime()

		if f.LastDeliveryDate != nil && f.EnrollmentDate != nil && f.LastDeliveryDate.Before(*f.EnrollmentDate) {
			a.logger.Debug().
				Str("patient_id", id.String()).
				Time("delivery_date", *f.LastDeliveryDate).
				Time("enrollment_date", *f.EnrollmentDate).
				Msg("discarding delivery date recorded before enrollment")
			f.LastDeliveryDate = nil
		}

		if f.LastStatus != AnyResult && string(f.LastStatus) != dict.NotHIVTested {
			out.Eligible[id] = true
		}
	}
	return out, nil
}

// lastObservations issues the three batched observation lookups one after
// another, so an evaluation never holds more than the request's connection.
func (a *Aggregator) lastObservations(ctx context.Context, cohort []uuid.UUID, asOf time.Time, dict *metadata.Dictionary) (statuses, testDates, deliveries map[uuid.UUID]*Observation, err error) {
	lookups := []struct {
		source  string
		concept string
		dst     *map[uuid.UUID]*Observation
	}{
		{"hiv_status", dict.HIVStatus, &statuses},
		{"hiv_test_date", dict.HIVTestDate, &testDates},
		{"delivery_date", dict.DeliveryDate, &deliveries},
	}
	for _, l := range lookups {
		start := time.Now()
		obs, err := a.observations.LastObservations(ctx, l.concept, cohort, asOf)
		a.metrics.ObserveLookupLatency(l.source, time.Since(start))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("last %s observation lookup: %w", l.source, err)
		}
		*l.dst = obs
	}
	return statuses, testDates, deliveries, nil
}
