package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockStore struct {
	programs map[string]uuid.UUID
	concepts map[string]string
	err      error
}

func (m *mockStore) ProgramByName(_ context.Context, name string) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	id, ok := m.programs[name]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func (m *mockStore) ConceptByName(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	code, ok := m.concepts[name]
	if !ok {
		return "", ErrNotFound
	}
	return code, nil
}

func completeStore() *mockStore {
	return &mockStore{
		programs: map[string]uuid.UUID{ProgramMCHMS: uuid.MustParse("6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11")},
		concepts: map[string]string{
			ConceptHIVStatus:          "159427",
			ConceptDateOfHIVDiagnosis: "160554",
			ConceptDateOfConfinement:  "5599",
			ConceptNotHIVTested:       "1118",
		},
	}
}

func TestResolve(t *testing.T) {
	d, err := NewService(completeStore()).Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MCHMSProgram.String() != "6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11" {
		t.Errorf("unexpected program %s", d.MCHMSProgram)
	}
	if d.HIVStatus != "159427" || d.HIVTestDate != "160554" || d.DeliveryDate != "5599" || d.NotHIVTested != "1118" {
		t.Errorf("unexpected dictionary %+v", d)
	}
}

func TestResolve_MissingConcept(t *testing.T) {
	store := completeStore()
	delete(store.concepts, ConceptDateOfConfinement)

	_, err := NewService(store).Resolve(context.Background())
	var ume *UnknownMetadataError
	if !errors.As(err, &ume) {
		t.Fatalf("expected UnknownMetadataError, got %v", err)
	}
	if ume.Kind != "concept" || ume.Name != ConceptDateOfConfinement {
		t.Errorf("unexpected error detail %+v", ume)
	}
	if !errors.Is(err, ErrUnknownMetadata) {
		t.Error("expected error to match ErrUnknownMetadata")
	}
}

func TestResolve_MissingProgram(t *testing.T) {
	store := completeStore()
	store.programs = nil

	_, err := NewService(store).Resolve(context.Background())
	var ume *UnknownMetadataError
	if !errors.As(err, &ume) || ume.Kind != "program" {
		t.Fatalf("expected program UnknownMetadataError, got %v", err)
	}
}

func TestResolve_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := completeStore()
	store.err = boom

	_, err := NewService(store).Resolve(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrUnknownMetadata) {
		t.Error("store failures must not be reported as unknown metadata")
	}
}

func TestUnknownMetadataError_Message(t *testing.T) {
	err := &UnknownMetadataError{Kind: "concept", Name: "HIV_STATUS"}
	want := `unknown metadata: concept "HIV_STATUS"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
