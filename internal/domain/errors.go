package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is wrapped by every weather fetch failure.
	ErrNoData = errors.New("no weather data")
	// ErrInvalidGeometry marks an area whose geometry is empty or unparseable.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrAreaNotFound is returned by repositories for unknown IDs.
	ErrAreaNotFound = errors.New("area not found")
	// ErrConflict is returned when a conditional update no longer matches the
	// stored state.
	ErrConflict = errors.New("area changed since it was read")
	// ErrInvalidArea marks a stored record that fails schema validation.
	ErrInvalidArea = errors.New("invalid area record")
)

// NoDataError carries the diagnostic reason behind a failed weather fetch.
// It matches ErrNoData under errors.Is.
type NoDataError struct {
	Reason string
	Err    error
}

// NoData builds a NoDataError for the given reason and optional cause.
func NoData(reason string, err error) *NoDataError {
	return &NoDataError{Reason: reason, Err: err}
}

func (e *NoDataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no weather data: %s", e.Reason)
	}
	return fmt.Sprintf("no weather data: %s: %v", e.Reason, e.Err)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

func (e *NoDataError) Unwrap() error { return e.Err }
