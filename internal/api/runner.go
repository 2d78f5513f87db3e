package api

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
)

// Completer turns a system prompt and a user prompt into a text answer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StreamCompleter is a Completer that can deliver the answer incrementally.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string, emit func(string) error) error
}

// Runner provides simple text-in/text-out Claude API calls.
type Runner struct {
	client *Client
}

// NewRunner creates a new API runner.
func NewRunner(client *Client) *Runner {
	return &Runner{client: client}
}

// Complete executes a prompt with an optional system message. No tools are
// offered.
func (r *Runner) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := r.client.CreateMessage(ctx, r.params(systemPrompt, userPrompt))
	if err != nil {
		return "", err
	}
	return MessageText(resp), nil
}

// CompleteStream is Complete with text deltas delivered to emit as they arrive.
func (r *Runner) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, emit func(string) error) error {
	_, err := r.client.StreamMessage(ctx, r.params(systemPrompt, userPrompt), emit)
	return err
}

func (r *Runner) params(systemPrompt, userPrompt string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params
}

var _ StreamCompleter = (*Runner)(nil)
