package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Drafter writes the customer-facing message of a synthesis with an LLM.
type Drafter struct {
	completer Completer
	signature string
}

// NewDrafter creates a Drafter that signs messages with signature.
func NewDrafter(completer Completer, signature string) *Drafter {
	if signature == "" {
		signature = "Customer Service Team"
	}
	return &Drafter{completer: completer, signature: signature}
}

// Draft implements synthesis.Drafter.
func (d *Drafter) Draft(ctx context.Context, request string, rec models.SynthesisRecord) (string, error) {
	system := fmt.Sprintf(`You write replies to customers on behalf of the company.
Be empathetic and concrete: acknowledge the problem, explain the cause in plain words, state the next step.
Never mention internal systems, agents or tools. Quote reference numbers exactly.
Sign the message as %q.`, d.signature)

	text, err := d.completer.Complete(ctx, system, DraftPrompt(request, rec))
	if err != nil {
		return "", fmt.Errorf("draft customer message: %w", err)
	}
	return text, nil
}

// DraftPrompt renders what the drafting model needs to know.
func DraftPrompt(request string, rec models.SynthesisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer request:\n%s\n\n", request)
	if len(rec.References) > 0 {
		fmt.Fprintf(&b, "References: %s\n\n", strings.Join(rec.References, ", "))
	}
	b.WriteString("Findings:\n")
	for _, f := range rec.Findings {
		status := f.Summary
		if !f.Available {
			status = "(could not be checked)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.DisplayName, status)
	}
	fmt.Fprintf(&b, "\nRoot cause: %s\nNext step: %s\n", rec.RootCause, rec.RecommendedAction)
	return b.String()
}
