package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCapability matches any DuplicateCapabilityError.
	ErrDuplicateCapability = errors.New("duplicate capability")
	// ErrNotFound matches any NotFoundError.
	ErrNotFound = errors.New("capability not found")
	// ErrInvalidEndpoint is returned for endpoints missing a capability ID or URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// DuplicateCapabilityError is returned when a capability ID is already registered.
type DuplicateCapabilityError struct {
	CapabilityID string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("capability %q is already registered", e.CapabilityID)
}

// Is reports whether target is ErrDuplicateCapability.
func (e *DuplicateCapabilityError) Is(target error) bool {
	return target == ErrDuplicateCapability
}

// NotFoundError is returned when removing or looking up an unknown capability.
type NotFoundError struct {
	CapabilityID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("capability %q is not registered", e.CapabilityID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
