package binder

import (
	"errors"
	"fmt"
)

// ErrBinding matches any BindingError.
var ErrBinding = errors.New("capability binding failed")

// BindingError reports a descriptor that cannot be exposed as a tool.
type BindingError struct {
	CapabilityID string
	ToolName     string
	Reason       string
}

func (e *BindingError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("cannot bind capability %q as %q: %s", e.CapabilityID, e.ToolName, e.Reason)
	}
	return fmt.Sprintf("cannot bind capability %q: %s", e.CapabilityID, e.Reason)
}

// Is reports whether target is ErrBinding.
func (e *BindingError) Is(target error) bool {
	return target == ErrBinding
}
