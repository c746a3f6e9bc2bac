package kvstore

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in the store
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrVersionConflict is returned by CompareAndSwap when the stored version differs from the expected one
	ErrVersionConflict = errors.New("kvstore: version conflict")

	// ErrStoreUnavailable wraps transient infrastructure failures; the operation may be retried
	ErrStoreUnavailable = errors.New("kvstore: store unavailable")

	// ErrEmptyKey is returned when an operation receives an empty key
	ErrEmptyKey = errors.New("kvstore: key cannot be empty")

	// ErrInvalidConfig is returned when a backend is constructed with incomplete configuration
	ErrInvalidConfig = errors.New("kvstore: invalid configuration")
)

// IsRetryable reports whether err is a transient failure that the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrVersionConflict)
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}
