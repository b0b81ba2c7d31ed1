package logistics

import (
	"errors"
	"fmt"
)

var (
	// ErrRequiredField is returned when a mandatory field is missing.
	ErrRequiredField = errors.New("logistics: required field missing")
	// ErrNegativeAmount is returned when a monetary input is below zero.
	ErrNegativeAmount = errors.New("logistics: negative amount")
	// ErrInvalidType is returned for an unknown entry type.
	ErrInvalidType = errors.New("logistics: invalid type")
	// ErrSlipReferenced is returned when mutating a loading slip that a bill or memo references.
	ErrSlipReferenced = errors.New("logistics: loading slip is referenced")
	// ErrUnknownReference is returned when a referenced record does not exist.
	ErrUnknownReference = errors.New("logistics: unknown reference")
	// ErrReferenced is returned when deleting a record other records point at.
	ErrReferenced = errors.New("logistics: record is referenced")
	// ErrVehicleExists is returned when registering a vehicle number twice.
	ErrVehicleExists = errors.New("logistics: vehicle already registered")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, details string) error {
	return &ValidationError{Err: err, Details: details}
}
