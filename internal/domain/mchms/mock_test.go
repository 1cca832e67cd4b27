package mchms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/mchms/internal/domain/metadata"
)

var testDict = &metadata.Dictionary{
	MCHMSProgram: uuid.MustParse("6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11"),
	HIVStatus:    "HIV_STATUS_CODE",
	HIVTestDate:  "HIV_TEST_DATE_CODE",
	DeliveryDate: "DELIVERY_DATE_CODE",
	NotHIVTested: "NOT_TESTED",
}

// =========== Mock Records ===========

// mockRecords is an in-memory patient record store that implements all three
// lookup interfaces.
type mockRecords struct {
	mu sync.Mutex

	dead        map[uuid.UUID]bool
	enrollments map[uuid.UUID]time.Time
	status      map[uuid.UUID]string
	testDates   map[uuid.UUID]time.Time
	deliveries  map[uuid.UUID]time.Time

	aliveErr  error
	enrollErr error
	obsErr    map[string]error

	aliveCalls  int
	enrollCalls int
	obsCalls    map[string]int
	lastProgram uuid.UUID
}

func newMockRecords() *mockRecords {
	return &mockRecords{
		dead:        make(map[uuid.UUID]bool),
		enrollments: make(map[uuid.UUID]time.Time),
		status:      make(map[uuid.UUID]string),
		testDates:   make(map[uuid.UUID]time.Time),
		deliveries:  make(map[uuid.UUID]time.Time),
		obsErr:      make(map[string]error),
		obsCalls:    make(map[string]int),
	}
}

// patient registers a live, enrolled patient with a status and test date.
func (m *mockRecords) patient(enrolled time.Time, status string, tested time.Time) uuid.UUID {
	id := uuid.New()
	m.enrollments[id] = enrolled
	m.status[id] = status
	m.testDates[id] = tested
	return id
}

func (m *mockRecords) AliveAsOf(_ context.Context, cohort []uuid.UUID, _ time.Time) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliveCalls++
	if m.aliveErr != nil {
		return nil, m.aliveErr
	}
	out := make(map[uuid.UUID]bool)
	for _, id := range cohort {
		if !m.dead[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *mockRecords) ActiveEnrollments(_ context.Context, programID uuid.UUID, cohort []uuid.UUID, _ time.Time) (map[uuid.UUID]*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollCalls++
	m.lastProgram = programID
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	out := make(map[uuid.UUID]*Enrollment)
	for _, id := range cohort {
		if d, ok := m.enrollments[id]; ok {
			out[id] = &Enrollment{ID: uuid.New(), PatientID: id, ProgramID: programID, DateEnrolled: d}
		}
	}
	return out, nil
}

func (m *mockRecords) LastObservations(_ context.Context, conceptCode string, cohort []uuid.UUID, _ time.Time) (map[uuid.UUID]*Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obsCalls[conceptCode]++
	if err := m.obsErr[conceptCode]; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*Observation)
	for _, id := range cohort {
		switch conceptCode {
		case testDict.HIVStatus:
			if v, ok := m.status[id]; ok {
				v := v
				out[id] = &Observation{PatientID: id, ConceptCode: conceptCode, ValueCoded: &v}
			}
		case testDict.HIVTestDate:
			if v, ok := m.testDates[id]; ok {
				v := v
				out[id] = &Observation{PatientID: id, ConceptCode: conceptCode, ValueDatetime: &v}
			}
		case testDict.DeliveryDate:
			if v, ok := m.deliveries[id]; ok {
				v := v
				out[id] = &Observation{PatientID: id, ConceptCode: conceptCode, ValueDatetime: &v}
			}
		}
	}
	return out, nil
}

// =========== Mock Resolver ===========

type mockResolver struct {
	dict  *metadata.Dictionary
	err   error
	calls int
}

func (r *mockResolver) Resolve(context.Context) (*metadata.Dictionary, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.dict, nil
}
