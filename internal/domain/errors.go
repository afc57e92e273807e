package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch signals a vector whose width differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrOutOfRange signals a document position outside the store.
	ErrOutOfRange = errors.New("position out of range")
	// ErrPersistenceUnavailable signals that durable storage could not be read or written.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrEncodingFailure signals an encoder collaborator failure. Retryable by the caller.
	ErrEncodingFailure = errors.New("encoding failure")
	// ErrInvalidReview signals a review that cannot be turned into a document.
	ErrInvalidReview = errors.New("invalid review")
	// ErrInvalidQuery signals a malformed search or routing request.
	ErrInvalidQuery = errors.New("invalid query")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the offending widths.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(expected, got int) error {
	return &DimensionMismatchError{Expected: expected, Got: got}
}
