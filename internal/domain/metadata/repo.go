package metadata

import (
	"context"

	"github.com/google/uuid"
)

// Store looks up concrete identifiers by symbolic name. Implementations
// return ErrNotFound (possibly wrapped) for unknown names.
type Store interface {
	ProgramByName(ctx context.Context, name string) (uuid.UUID, error)
	ConceptByName(ctx context.Context, name string) (string, error)
}

// Resolver produces the dictionary for one evaluation.
type Resolver interface {
	Resolve(ctx context.Context) (*Dictionary, error)
}
