package orchestrator

import (
	"context"

	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Planner makes the Deliberate decision for one iteration.
type Planner interface {
	Plan(ctx context.Context, in PlanInput) (Decision, error)
}

// PlanInput is everything a planner may look at.
type PlanInput struct {
	ConversationID string
	// Request is the user text being answered.
	Request string
	// Turns is the conversation so far, including tool results from earlier
	// iterations of this request.
	Turns []models.Turn
	// Tools are the capabilities bound for this request, in registry order.
	Tools []binder.Tool
	// Results are this request's invocation results in call order.
	Results []models.InvocationResult
	// Iteration counts deliberations within the request, starting at 1.
	Iteration int
}

// Call asks one tool one question.
type Call struct {
	Tool     string `json:"tool"`
	Question string `json:"question"`
}

// Decision is a planner's answer: either more calls, or a final text.
type Decision struct {
	Calls []Call
	// Final is the planner's own closing text. It is only read when Calls
	// is empty and may be blank.
	Final string
}

// Done reports whether the decision ends the loop.
func (d Decision) Done() bool {
	return len(d.Calls) == 0
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, in PlanInput) (Decision, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, in PlanInput) (Decision, error) {
	return f(ctx, in)
}
