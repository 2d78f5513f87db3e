package models

import (
	"fmt"
	"time"
)

// FailureKind classifies why a remote invocation did not produce an answer.
type FailureKind string

const (
	// FailureUnreachable means the specialist could not be reached in time.
	FailureUnreachable FailureKind = "unreachable"
	// FailureProtocol means the specialist answered with something unusable.
	FailureProtocol FailureKind = "protocol_error"
	// FailureRemote means the specialist reported an application error.
	FailureRemote FailureKind = "remote_error"
)

// Failure describes a structured invocation failure.
type Failure struct {
	Kind FailureKind `json:"kind"`
	// Category is the remote's machine-readable error category (remote errors only).
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

func (f Failure) String() string {
	if f.Category != "" {
		return fmt.Sprintf("%s (%s): %s", f.Kind, f.Category, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// InvocationResult is the outcome of one remote capability call.
type InvocationResult struct {
	CapabilityID string        `json:"capability_id"`
	DisplayName  string        `json:"display_name,omitempty"`
	Question     string        `json:"question"`
	Success      bool          `json:"success"`
	Text         string        `json:"text,omitempty"`
	Failure      *Failure      `json:"failure,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Latency      time.Duration `json:"latency"`
}

// Outcome returns the response text on success or the failure reason otherwise.
func (r InvocationResult) Outcome() string {
	if r.Success {
		return r.Text
	}
	if r.Failure != nil {
		return r.Failure.String()
	}
	return "no response"
}

// Label returns the display name, falling back to the capability ID.
func (r InvocationResult) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.CapabilityID
}

// Failed builds a failed result.
func Failed(capabilityID, question string, kind FailureKind, msg string) InvocationResult {
	return InvocationResult{
		CapabilityID: capabilityID,
		Question:     question,
		Failure:      &Failure{Kind: kind, Message: msg},
		StartedAt:    time.Now(),
	}
}
