package mchms

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CalculationName identifies this calculation in responses and logs.
const CalculationName = "tested-for-hiv-in-mchms"

// PregnancyStage is the pregnancy phase a test must fall into. The zero
// value StageAny matches every phase.
type PregnancyStage string

const (
	StageAny              PregnancyStage = ""
	StageBeforeEnrollment PregnancyStage = "BEFORE_ENROLLMENT"
	StageAntenatal        PregnancyStage = "ANTENATAL"
	StageDelivery         PregnancyStage = "DELIVERY"
	StagePostnatal        PregnancyStage = "POSTNATAL"
	StageAfterEnrollment  PregnancyStage = "AFTER_ENROLLMENT"
)

var validStages = map[PregnancyStage]bool{
	StageAny: true, StageBeforeEnrollment: true, StageAntenatal: true,
	StageDelivery: true, StagePostnatal: true, StageAfterEnrollment: true,
}

// ParseStage converts a request parameter into a PregnancyStage. Empty input
// and "any" (in any case) mean StageAny.
func ParseStage(s string) (PregnancyStage, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "ANY" {
		return StageAny, nil
	}
	stage := PregnancyStage(v)
	if !validStages[stage] {
		return StageAny, fmt.Errorf("invalid pregnancy stage: %s", s)
	}
	return stage, nil
}

func (s PregnancyStage) String() string {
	if s == StageAny {
		return "ANY"
	}
	return string(s)
}

// ResultCode is a coded HIV test outcome. The zero value AnyResult matches
// every outcome.
type ResultCode string

const AnyResult ResultCode = ""

// Enrollment is an active program enrollment as of the evaluation instant.
type Enrollment struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProgramID    uuid.UUID  `db:"program_id" json:"program_id"`
	DateEnrolled time.Time  `db:"date_enrolled" json:"date_enrolled"`
	DateEnded    *time.Time `db:"date_completed" json:"date_completed,omitempty"`
}

// Observation is the most recent recorded value of a concept for a patient.
type Observation struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConceptCode   string     `db:"concept_code" json:"concept_code"`
	ValueCoded    *string    `db:"value_coded" json:"value_coded,omitempty"`
	ValueDatetime *time.Time `db:"value_datetime" json:"value_datetime,omitempty"`
	ObsDatetime   time.Time  `db:"obs_datetime" json:"obs_datetime"`
}

// Coded returns the coded value, or AnyResult when the observation is nil or
// has no coded answer.
func (o *Observation) Coded() ResultCode {
	if o == nil || o.ValueCoded == nil {
		return AnyResult
	}
	return ResultCode(*o.ValueCoded)
}

// Datetime returns the datetime value, or nil.
func (o *Observation) Datetime() *time.Time {
	if o == nil {
		return nil
	}
	return o.ValueDatetime
}

// PatientFacts bundles everything the classifier needs about one patient.
type PatientFacts struct {
	PatientID           uuid.UUID
	Alive               bool
	HasActiveEnrollment bool
	EnrollmentDate      *time.Time
	LastStatus          ResultCode
	LastTestDate        *time.Time
	LastDeliveryDate    *time.Time
}

// CohortFacts is the aggregated view of a cohort for one evaluation.
type CohortFacts struct {
	Facts    map[uuid.UUID]*PatientFacts
	Eligible map[uuid.UUID]bool
}

// EvaluationRequest is the parameter bag for one evaluation call.
type EvaluationRequest struct {
	Cohort []uuid.UUID
	Stage  PregnancyStage
	Result ResultCode
	AsOf   time.Time
}

// Qualification is the outcome for a single patient.
type Qualification struct {
	PatientID uuid.UUID `json:"patient_id"`
	Qualified bool      `json:"qualified"`
}

// Summary counts the outcome of an evaluation.
type Summary struct {
	CohortSize int `json:"cohort_size"`
	Eligible   int `json:"eligible"`
	Qualified  int `json:"qualified"`
}

// Evaluation holds one result per distinct cohort member, in input order.
type Evaluation struct {
	Calculation string          `json:"calculation"`
	Stage       string          `json:"stage"`
	Result      string          `json:"result,omitempty"`
	AsOf        time.Time       `json:"as_of"`
	Results     []Qualification `json:"results"`
	Summary     Summary         `json:"summary"`
}

// AsMap returns the results keyed by patient.
func (e *Evaluation) AsMap() map[uuid.UUID]bool {
	m := make(map[uuid.UUID]bool, len(e.Results))
	for _, q := range e.Results {
		m[q.PatientID] = q.Qualified
	}
	return m
}

// uniqueCohort drops repeated identifiers, keeping first occurrences.
func uniqueCohort(cohort []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(cohort))
	out := make([]uuid.UUID, 0, len(cohort))
	for _, id := range cohort {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
