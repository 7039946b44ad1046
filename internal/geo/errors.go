package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by lookups for identifiers absent from the index.
	ErrNotFound = errors.New("feature not found")

	// ErrSchemaMismatch is matched by every structural mismatch between the
	// topology and the schema mapping. It aborts index construction.
	ErrSchemaMismatch = errors.New("geography schema mismatch")
)

// SchemaMismatchError describes where the topology deviates from the mapping.
type SchemaMismatchError struct {
	Object   string
	Property string
	// Geometry is the position inside the object's collection, -1 when the
	// mismatch concerns the object itself.
	Geometry int
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	switch {
	case e.Object == "":
		return fmt.Sprintf("geography schema mismatch: %s", e.Reason)
	case e.Geometry < 0:
		return fmt.Sprintf("geography schema mismatch: object %q: %s", e.Object, e.Reason)
	case e.Property == "":
		return fmt.Sprintf("geography schema mismatch: object %q geometry %d: %s", e.Object, e.Geometry, e.Reason)
	}
	return fmt.Sprintf("geography schema mismatch: object %q geometry %d property %q: %s",
		e.Object, e.Geometry, e.Property, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func objectMismatch(object, reason string) *SchemaMismatchError {
	return &SchemaMismatchError{Object: object, Geometry: -1, Reason: reason}
}
