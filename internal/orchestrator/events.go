package orchestrator

import (
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRequestStarted indicates a request was accepted.
	EventRequestStarted EventType = "request_started"
	// EventDeliberation indicates the planner returned a decision.
	EventDeliberation EventType = "deliberation"
	// EventCallStarted indicates a capability call is about to be sent.
	EventCallStarted EventType = "call_started"
	// EventCallFinished indicates a capability call returned a result.
	EventCallFinished EventType = "call_finished"
	// EventFinalized indicates the answer was produced.
	EventFinalized EventType = "finalized"
)

// Event is emitted while a request is handled. Handlers are called
// synchronously and may be invoked from several goroutines at once during
// concurrent fan-out.
type Event struct {
	Type           EventType
	ConversationID string
	RequestID      string
	Iteration      int
	// Tool is the tool name for call events.
	Tool string
	// Question is the question sent for call events.
	Question string
	// Result is set on EventCallFinished.
	Result *models.InvocationResult
	// Message carries planner or finalization detail.
	Message   string
	Timestamp time.Time
}

// EventHandler receives orchestrator events.
type EventHandler func(Event)
