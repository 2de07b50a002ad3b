package api

import (
	"errors"
	"fmt"
)

// FetchError represents a failed backend call. Transport errors, timeouts,
// and non-2xx responses all map here so callers can treat them uniformly.
type FetchError struct {
	Op     string
	Status int // HTTP status, 0 for transport failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetch reports whether err is (or wraps) a backend fetch failure.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsNotFound reports whether err is a fetch failure with a 404 status.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == 404
}
