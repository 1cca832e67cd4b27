package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore is a Store read from a YAML dictionary file:
//
//	programs:
//	  MCHMS: 6b0b2a5e-1d6c-4b59-9b0d-2c3f3c4a1e11
//	concepts:
//	  HIV_STATUS: "1169AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
type FileStore struct {
	Programs map[string]uuid.UUID `yaml:"programs"`
	Concepts map[string]string    `yaml:"concepts"`
}

// LoadFile parses a dictionary file.
func LoadFile(path string) (*FileStore, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return ParseFile(content)
}

// ParseFile parses dictionary YAML.
func ParseFile(content []byte) (*FileStore, error) {
	var fs FileStore
	if err := yaml.Unmarshal(content, &fs); err != nil {
		return nil, fmt.Errorf("parse metadata file: %w", err)
	}
	if len(fs.Programs) == 0 && len(fs.Concepts) == 0 {
		return nil, fmt.Errorf("metadata file defines no programs or concepts")
	}
	return &fs, nil
}

func (f *FileStore) ProgramByName(_ context.Context, name string) (uuid.UUID, error) {
	id, ok := f.Programs[name]
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func (f *FileStore) ConceptByName(_ context.Context, name string) (string, error) {
	code, ok := f.Concepts[name]
	if !ok || code == "" {
		return "", ErrNotFound
	}
	return code, nil
}
