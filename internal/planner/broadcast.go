package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// DefaultInconclusive are phrases that mark a specialist answer as not
// settling the question.
var DefaultInconclusive = []string{
	"unclear",
	"unknown",
	"not sure",
	"unable to determine",
	"could not determine",
	"cannot determine",
	"no information",
	"need more information",
	"please provide",
	"did not respond",
}

// Broadcast is a deterministic planner that needs no model. It asks every
// capability the user's question, re-asks once any capability whose
// answers were all inconclusive, and then finishes.
type Broadcast struct {
	inconclusive []string
}

// NewBroadcast creates a Broadcast planner with DefaultInconclusive.
func NewBroadcast() *Broadcast {
	return &Broadcast{inconclusive: DefaultInconclusive}
}

// Plan implements orchestrator.Planner.
func (b *Broadcast) Plan(_ context.Context, in orchestrator.PlanInput) (orchestrator.Decision, error) {
	if len(in.Tools) == 0 {
		return orchestrator.Decision{}, nil
	}

	if len(in.Results) == 0 {
		calls := make([]orchestrator.Call, 0, len(in.Tools))
		for _, t := range in.Tools {
			calls = append(calls, orchestrator.Call{Tool: t.Name, Question: in.Request})
		}
		return orchestrator.Decision{Calls: calls}, nil
	}

	asked := make(map[string][]models.InvocationResult)
	for _, r := range in.Results {
		asked[r.CapabilityID] = append(asked[r.CapabilityID], r)
	}

	var calls []orchestrator.Call
	for _, t := range in.Tools {
		results := asked[t.Capability.ID]
		if len(results) != 1 || !b.isInconclusive(results[0]) {
			continue
		}
		calls = append(calls, orchestrator.Call{
			Tool:     t.Name,
			Question: followUp(in.Request, results[0].Text),
		})
	}
	return orchestrator.Decision{Calls: calls}, nil
}

// isInconclusive reports whether a successful answer failed to settle the
// question. Failed calls are not retried.
func (b *Broadcast) isInconclusive(r models.InvocationResult) bool {
	if !r.Success {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(r.Text))
	if text == "" {
		return true
	}
	for _, phrase := range b.inconclusive {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func followUp(request, previous string) string {
	return fmt.Sprintf("Your earlier answer was: %q. Please check again and give a definite answer to: %s",
		strings.TrimSpace(previous), request)
}

var _ orchestrator.Planner = (*Broadcast)(nil)
