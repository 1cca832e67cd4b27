package mchms

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDate is matched by every MissingDateError.
	ErrMissingDate = errors.New("missing required date")
	// ErrUnknownStage is returned when a stage outside the known set reaches the classifier.
	ErrUnknownStage = errors.New("unknown pregnancy stage")
)

// MissingDateError reports a date the classifier cannot do without for the
// requested stage. It indicates a data-integrity fault in the record store.
type MissingDateError struct {
	Field string
	Stage PregnancyStage
}

func (e *MissingDateError) Error() string {
	return fmt.Sprintf("%s: %s is required for stage %s", ErrMissingDate, e.Field, e.Stage)
}

func (e *MissingDateError) Unwrap() error { return ErrMissingDate }
