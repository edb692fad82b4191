package proximity

import (
	"errors"

	"github.com/owldoor/zipradius/internal/postal"
)

var (
	// ErrInvalidInput reports a missing, non-positive or oversized radius, or
	// a malformed center code.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCenterNotFound reports a center code absent from the reference data.
	ErrCenterNotFound = errors.New("center postal code not found")
	// ErrDataUnavailable reports that the reference data could not be loaded.
	ErrDataUnavailable = postal.ErrDataUnavailable
)

// Stable error codes for API responses.
const (
	CodeInvalidInput    = "invalid_input"
	CodeCenterNotFound  = "center_not_found"
	CodeDataUnavailable = "data_unavailable"
	CodeInternal        = "internal"
)

// ErrorCode maps an error returned by this package to its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrCenterNotFound):
		return CodeCenterNotFound
	case errors.Is(err, ErrDataUnavailable):
		return CodeDataUnavailable
	default:
		return CodeInternal
	}
}
