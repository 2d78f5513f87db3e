// Package planner provides the planners that drive the orchestrator's
// deliberation: LLM planners that choose capabilities through tool calling,
// and a deterministic broadcast planner that needs no model.
package planner

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// DefaultSystemPrompt frames the model as an orchestrator of specialists.
const DefaultSystemPrompt = `You are an orchestrator that answers requests by delegating to specialist agents.
Each specialist is available as a tool that takes one natural-language question.`

const guidelines = `Guidelines:
- Ask specialists in natural language, one focused question per call. Quote identifiers such as order numbers exactly.
- Call several specialists in one turn when their questions are independent.
- You may ask the same specialist again if its answer was unclear or raised a follow-up.
- A specialist that is unavailable will not become available within this request; do not retry it repeatedly.
- When you have enough information, stop calling tools and reply with a short summary of the root cause
  and the recommended next step.`

// SystemPrompt builds the planner's system prompt from a base text and the
// currently bound tools.
func SystemPrompt(base string, tools []binder.Tool) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))
	b.WriteString("\n\n")
	if len(tools) == 0 {
		b.WriteString("No specialists are currently registered. Answer from the conversation alone and say that no specialist could be consulted.\n")
		return b.String()
	}

	b.WriteString("Available specialists:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Name, t.Capability.Label(), t.Description)
	}
	b.WriteString("\n")
	b.WriteString(guidelines)
	b.WriteString("\n")
	return b.String()
}

// Message is one rendered chat message.
type Message struct {
	// Assistant is false for user-side messages.
	Assistant bool
	Text      string
}

// Transcript renders turns as alternating user and assistant messages,
// starting with a user message. Tool results are user-side messages
// attributed to the specialist that produced them; consecutive messages of
// the same side are merged.
func Transcript(turns []models.Turn, tools []binder.Tool) []Message {
	names := make(map[string]string, len(tools))
	for _, t := range tools {
		names[t.Capability.ID] = t.Capability.Label()
	}

	var out []Message
	push := func(assistant bool, text string) {
		if text = strings.TrimSpace(text); text == "" {
			return
		}
		if len(out) > 0 && out[len(out)-1].Assistant == assistant {
			out[len(out)-1].Text += "\n\n" + text
			return
		}
		out = append(out, Message{Assistant: assistant, Text: text})
	}

	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			push(false, turn.Text)
		case models.RoleAgent:
			push(true, turn.Text)
		case models.RoleToolResult:
			name := names[turn.CapabilityID]
			if name == "" {
				name = turn.CapabilityID
			}
			push(false, fmt.Sprintf("[Result from %s]\n%s", name, turn.Text))
		}
	}

	if len(out) > 0 && out[0].Assistant {
		out = append([]Message{{Text: "(conversation continues)"}}, out...)
	}
	return out
}

// Option configures an LLM planner.
type Option func(*options)

type options struct {
	systemPrompt string
	history      int
	logger       zerolog.Logger
}

func defaultOptions() options {
	return options{logger: zerolog.Nop()}
}

// WithSystemPrompt replaces DefaultSystemPrompt as the base of the system prompt.
func WithSystemPrompt(s string) Option {
	return func(o *options) { o.systemPrompt = s }
}

// WithHistory limits the turns sent to the model to the most recent n.
// Zero sends the whole conversation.
func WithHistory(n int) Option {
	return func(o *options) { o.history = n }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}
