package merge

import (
	"errors"
	"fmt"
)

// Common errors for merge iterator operations
var (
	// ErrExhaustedIterator is returned when GetNext is called after every source has been consumed.
	// Callers are expected to check HasNext first, so this always indicates a caller bug.
	ErrExhaustedIterator = errors.New("no more elements available")

	// ErrInvalidArgument is returned when an iterator is constructed with an unsupported set of sources
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsortedSource is returned by the order check when a source is not in non-decreasing order
	ErrUnsortedSource = fmt.Errorf("%w: source is not sorted", ErrInvalidArgument)
)
