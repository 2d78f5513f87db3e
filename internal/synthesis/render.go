package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Render formats a record as markdown.
func Render(rec models.SynthesisRecord) string {
	var b strings.Builder

	if len(rec.References) > 0 {
		fmt.Fprintf(&b, "**Regarding:** %s\n\n", strings.Join(rec.References, ", "))
	}

	if len(rec.Findings) > 0 {
		b.WriteString("### Findings\n")
		for _, f := range rec.Findings {
			if f.Available {
				fmt.Fprintf(&b, "- **%s**: %s\n", f.DisplayName, f.Summary)
			} else {
				fmt.Fprintf(&b, "- **%s** _(unavailable)_: %s\n", f.DisplayName, strings.TrimPrefix(f.Summary, "specialist unavailable: "))
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "### Root cause\n%s\n\n", rec.RootCause)
	fmt.Fprintf(&b, "### Recommended action\n%s\n", rec.RecommendedAction)

	if rec.CustomerMessage != "" {
		fmt.Fprintf(&b, "\n### Draft message\n%s\n", rec.CustomerMessage)
	}
	if rec.Partial {
		b.WriteString("\n_This answer is partial: not every specialist could be consulted._\n")
	}
	return b.String()
}

// TemplateDrafter writes a plain customer reply without calling a model.
type TemplateDrafter struct {
	// Signature closes the message.
	Signature string
}

// Draft implements Drafter.
func (d TemplateDrafter) Draft(_ context.Context, _ string, rec models.SynthesisRecord) (string, error) {
	sig := d.Signature
	if sig == "" {
		sig = "Customer Service Team"
	}

	var b strings.Builder
	b.WriteString("Dear customer,\n\n")
	if len(rec.References) > 0 {
		fmt.Fprintf(&b, "Thank you for contacting us about %s. ", strings.Join(rec.References, ", "))
	} else {
		b.WriteString("Thank you for contacting us. ")
	}
	b.WriteString("We looked into your request with the teams involved.\n\n")
	fmt.Fprintf(&b, "What we found: %s\n\n", rec.RootCause)
	b.WriteString("We are following up on this and will keep you updated until it is resolved.\n\n")
	fmt.Fprintf(&b, "Kind regards,\n%s", sig)
	return b.String(), nil
}
