package evaluation

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch with errors.Is to decide between retrying,
// surfacing to the user, or ignoring.
var (
	// ErrValidation marks rejected input: empty required slices, labels
	// outside the vocabulary, confidences or thresholds out of range.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing required reference, e.g. a named
	// baseline that a comparison explicitly depends on.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks baseline persistence failures.
	ErrStorage = errors.New("storage error")
)

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func storageErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, args...))
}
