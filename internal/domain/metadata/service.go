package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Service resolves the calculation dictionary from a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Resolve looks up the MCH-MS program and the four concepts the calculation
// reads. A name missing from the store yields an UnknownMetadataError.
func (s *Service) Resolve(ctx context.Context) (*Dictionary, error) {
	programID, err := s.store.ProgramByName(ctx, ProgramMCHMS)
	if err != nil {
		return nil, lookupError("program", ProgramMCHMS, err)
	}

	d := &Dictionary{MCHMSProgram: programID}
	concepts := []struct {
		name string
		dst  *string
	}{
		{ConceptHIVStatus, &d.HIVStatus},
		{ConceptDateOfHIVDiagnosis, &d.HIVTestDate},
		{ConceptDateOfConfinement, &d.DeliveryDate},
		{ConceptNotHIVTested, &d.NotHIVTested},
	}
	for _, c := range concepts {
		code, err := s.store.ConceptByName(ctx, c.name)
		if err != nil {
			return nil, lookupError("concept", c.name, err)
		}
		*c.dst = code
	}
	return d, nil
}

func lookupError(kind, name string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &UnknownMetadataError{Kind: kind, Name: name}
	}
	return fmt.Errorf("lookup %s %s: %w", kind, name, err)
}
