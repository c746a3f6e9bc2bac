package collection

import "errors"

var (
	// ErrNotFound is returned by Get when the member value does not exist.
	ErrNotFound = errors.New("collection: member not found")

	// ErrIndexConflict is returned when the index record could not be updated
	// within the configured number of compare-and-swap attempts. Retryable.
	ErrIndexConflict = errors.New("collection: index update conflict")

	// ErrStaleIndex marks an index member whose value is missing. GetAll logs and skips it.
	ErrStaleIndex = errors.New("collection: index references missing member")

	// ErrCorruptIndex is returned when the index record cannot be decoded.
	ErrCorruptIndex = errors.New("collection: corrupt index record")

	// ErrDecode marks a member value that cannot be decoded. GetAll logs and skips it.
	ErrDecode = errors.New("collection: cannot decode member")

	// ErrInvalidKey is returned for empty keys or a member key equal to its collection key.
	ErrInvalidKey = errors.New("collection: invalid key")
)
