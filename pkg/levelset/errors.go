package levelset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariantViolation reports a pixel whose label disagrees with the
	// list holding it, or a pixel tracked by two lists at once.
	ErrInvariantViolation = errors.New("levelset: invariant violation")
	// ErrBoundaryViolation reports an active pixel without a full interior
	// neighborhood.
	ErrBoundaryViolation = errors.New("levelset: boundary violation")
	// ErrPhaseOrder is returned when ApplyUpdate does not follow CalculateChange.
	ErrPhaseOrder = errors.New("levelset: ApplyUpdate requires a preceding CalculateChange")
	// ErrNotInitialized is returned when iterating before Initialize.
	ErrNotInitialized = errors.New("levelset: filter not initialized")
	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("levelset: invalid configuration")
)

// ViolationError carries the pixel at which a fatal violation was detected.
// It unwraps to ErrInvariantViolation or ErrBoundaryViolation.
type ViolationError struct {
	Kind   error
	Index  int
	Detail string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v at pixel %d: %s", e.Kind, e.Index, e.Detail)
}

func (e *ViolationError) Unwrap() error { return e.Kind }

func invariantf(index int, format string, args ...interface{}) error {
	return &ViolationError{Kind: ErrInvariantViolation, Index: index, Detail: fmt.Sprintf(format, args...)}
}

func boundaryf(index int, format string, args ...interface{}) error {
	return &ViolationError{Kind: ErrBoundaryViolation, Index: index, Detail: fmt.Sprintf(format, args...)}
}
