package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier indicates a malformed client hardware address.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnknownIdentifier indicates no probe data exists for an identifier.
	ErrUnknownIdentifier = errors.New("unknown identifier")

	// ErrInvalidQuery indicates a locate request with nothing to locate.
	ErrInvalidQuery = errors.New("either mac or ssid is required")

	// ErrInvalidCoordinates indicates non-numeric or out-of-range coordinates.
	ErrInvalidCoordinates = errors.New("lat/lon must be numeric")

	// ErrSensorUnavailable indicates the sensor REST API could not be reached.
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrRateLimited indicates the geolocation database kept rejecting requests.
	ErrRateLimited = errors.New("geolocation rate limit exhausted")

	// ErrNotFound indicates a missing stored entity.
	ErrNotFound = errors.New("not found")
)

// ValidationError wraps caller input that failed validation.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
