package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrStorage     = errors.New("storage failure")
	ErrStorageFull = errors.New("storage full")
	ErrDelivery    = errors.New("delivery failed")
	ErrFetch       = errors.New("fetch failed")
)

func NewValidation(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

func NewNotFound(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, a...))
}

func NewStorage(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, a...))
}

// NewStorageFull reports exhaustion. The result matches both ErrStorageFull and ErrStorage.
func NewStorageFull(format string, a ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrStorage, ErrStorageFull, fmt.Sprintf(format, a...))
}

func NewDelivery(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrDelivery, fmt.Sprintf(format, a...))
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func IsStorageFull(err error) bool {
	return errors.Is(err, ErrStorageFull)
}

func IsDelivery(err error) bool {
	return errors.Is(err, ErrDelivery)
}
