package protocol

import (
	"errors"
	"fmt"
)

// AppError is returned by a Responder to report a categorized failure to the
// caller. Other errors are reported with CategoryInternal.
type AppError struct {
	Category string
	Message  string
}

func (e *AppError) Error() string {
	if e.Category == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// NewAppError creates an AppError.
func NewAppError(category, format string, args ...any) *AppError {
	return &AppError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// toRPCError maps a responder error onto the wire.
func toRPCError(err error) *RPCError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &RPCError{
			Code:    CodeAppError,
			Message: appErr.Message,
			Data:    &ErrorData{Category: appErr.Category},
		}
	}
	return &RPCError{
		Code:    CodeInternalError,
		Message: err.Error(),
		Data:    &ErrorData{Category: CategoryInternal},
	}
}
