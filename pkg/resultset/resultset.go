// Package resultset defines the record-set contracts the filter runs against,
// together with in-memory, Arrow and bbolt backed implementations.
package resultset

import (
	"errors"
	"fmt"

	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
)

// RecordID identifies a record within one ResultSet.
type RecordID uint64

// ResultSet is a mutable collection of records produced by the host.
type ResultSet interface {
	// Len returns the number of live records.
	Len() int
	// Accessor resolves a field name into a reusable value reader.
	// Unknown fields fail with types.ErrInvalidArgument.
	Accessor(field string) (Accessor, error)
	// Cursor opens a forward cursor over the live records in native order.
	Cursor() (Cursor, error)
}

// Cursor visits each live record once. Deleting the current record never causes
// another record to be skipped or revisited.
type Cursor interface {
	// Next advances to the next live record.
	Next() (RecordID, bool)
	// Delete removes the record the cursor currently points at.
	Delete() error
	// Close releases the cursor.
	Close() error
}

// ErrNull is returned by Accessor.Value for a null cell. A null is never a
// member of any inclusion set, not even one holding the empty string.
var ErrNull = errors.New("resultset: null value")

// Accessor reads one field's value per record. It must be closed after use.
type Accessor interface {
	Value(id RecordID) ([]byte, error)
	Close() error
}

func unknownField(field string) error {
	return fmt.Errorf("unknown field <%s>: %w", field, types.ErrInvalidArgument)
}

var errNoCurrent = fmt.Errorf("cursor is not positioned on a record: %w", types.ErrInvalidArgument)
