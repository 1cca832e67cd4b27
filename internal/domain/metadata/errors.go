package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMetadata is matched by every UnknownMetadataError.
	ErrUnknownMetadata = errors.New("unknown metadata")
	// ErrNotFound is returned by stores when a name has no mapping.
	ErrNotFound = errors.New("not found")
)

// UnknownMetadataError reports a program or concept name that could not be
// resolved. It is fatal to the whole evaluation.
type UnknownMetadataError struct {
	Kind string
	Name string
}

func (e *UnknownMetadataError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrUnknownMetadata, e.Kind, e.Name)
}

func (e *UnknownMetadataError) Unwrap() error { return ErrUnknownMetadata }
