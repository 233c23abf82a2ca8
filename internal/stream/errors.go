package stream

import "errors"

var (
	// ErrInvalidIdentity is returned for reducer ids that are empty or contain ':'.
	ErrInvalidIdentity = errors.New("invalid reducer identity")

	// ErrDuplicateReducer is returned when two registrations share an id.
	ErrDuplicateReducer = errors.New("duplicate reducer")

	// ErrNamespaceConflict is returned when two registrations declare the
	// same top-level projection key.
	ErrNamespaceConflict = errors.New("projection namespace conflict")

	// ErrUndeclaredKey is returned when a reducer emits a projection key it
	// did not declare.
	ErrUndeclaredKey = errors.New("undeclared projection key")

	// ErrMalformedKey is returned by ParseKey.
	ErrMalformedKey = errors.New("malformed state key")
)
