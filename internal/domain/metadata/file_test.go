package metadata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
programs:
  MCHMS: 6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11
concepts:
  HIV_STATUS: "159427"
  DATE_OF_HIV_DIAGNOSIS: "160554"
  DATE_OF_CONFINEMENT: "5599"
  NOT_HIV_TESTED: "1118"
`

func TestParseFile(t *testing.T) {
	fs, err := ParseFile([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := fs.ProgramByName(context.Background(), ProgramMCHMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11" {
		t.Errorf("unexpected program id %s", id)
	}
	code, err := fs.ConceptByName(context.Background(), ConceptNotHIVTested)
	if err != nil || code != "1118" {
		t.Errorf("unexpected concept %q, %v", code, err)
	}
	if _, err := fs.ConceptByName(context.Background(), "WEIGHT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseFile_Errors(t *testing.T) {
	if _, err := ParseFile([]byte("")); err == nil {
		t.Error("expected error for empty file")
	}
	if _, err := ParseFile([]byte("programs: [")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := ParseFile([]byte("programs:\n  MCHMS: not-a-uuid\n")); err == nil {
		t.Error("expected error for invalid program id")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	fs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := NewService(fs).Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.DeliveryDate != "5599" {
		t.Errorf("expected delivery concept 5599, got %s", d.DeliveryDate)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExampleFileResolves(t *testing.T) {
	fs, err := LoadFile("../../../metadata.example.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewService(fs).Resolve(context.Background()); err != nil {
		t.Errorf("example dictionary does not resolve: %v", err)
	}
}
