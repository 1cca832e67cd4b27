package metadata

import "github.com/google/uuid"

// Symbolic names resolved by the dictionary.
const (
	ProgramMCHMS = "MCHMS"

	ConceptHIVStatus          = "HIV_STATUS"
	ConceptDateOfHIVDiagnosis = "DATE_OF_HIV_DIAGNOSIS"
	ConceptDateOfConfinement  = "DATE_OF_CONFINEMENT"
	ConceptNotHIVTested       = "NOT_HIV_TESTED"
)

// Program maps to the program table.
type Program struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Concept maps to the concept table.
type Concept struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Dictionary carries the concrete identifiers one evaluation needs.
type Dictionary struct {
	MCHMSProgram uuid.UUID `json:"mchms_program"`
	HIVStatus    string    `json:"hiv_status"`
	HIVTestDate  string    `json:"hiv_test_date"`
	DeliveryDate string    `json:"delivery_date"`
	NotHIVTested string    `json:"not_hiv_tested"`
}
