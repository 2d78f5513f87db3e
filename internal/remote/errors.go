package remote

import (
	"context"
	"errors"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// CallError is a classified invocation failure.
type CallError struct {
	Failure models.Failure
	Err     error
}

func (e *CallError) Error() string {
	return e.Failure.String()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// classify maps any error from a call onto a Failure.
func classify(err error) models.Failure {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Failure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.Failure{Kind: models.FailureUnreachable, Message: err.Error()}
	}
	return models.Failure{Kind: models.FailureProtocol, Message: err.Error()}
}
