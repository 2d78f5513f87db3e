package planner

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/api"
	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/remote"
)

// MessageCreator sends one Messages API request. *api.Client satisfies it.
type MessageCreator interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// Anthropic plans with Claude tool use: every bound capability is offered
// as a tool, and each deliberation is one Messages API request.
type Anthropic struct {
	client MessageCreator
	opts   options
}

// NewAnthropic creates an Anthropic planner.
func NewAnthropic(client MessageCreator, opts ...Option) *Anthropic {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Anthropic{client: client, opts: o}
}

// Plan implements orchestrator.Planner.
func (p *Anthropic) Plan(ctx context.Context, in orchestrator.PlanInput) (orchestrator.Decision, error) {
	params := anthropic.MessageNewParams{
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt(p.opts.systemPrompt, in.Tools)},
		},
		Messages: anthropicMessages(Transcript(remote.Window(in.Turns, p.opts.history), in.Tools)),
	}
	if len(in.Tools) > 0 {
		params.Tools = anthropicTools(in.Tools)
	}

	resp, err := p.client.CreateMessage(ctx, params)
	if err != nil {
		return orchestrator.Decision{}, err
	}

	var (
		decision orchestrator.Decision
		text     strings.Builder
	)
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			question, err := binder.ParseQuestion(variant.Input)
			if err != nil {
				p.opts.logger.Warn().Err(err).Str("tool", variant.Name).Msg("unusable tool input")
			}
			decision.Calls = append(decision.Calls, orchestrator.Call{Tool: variant.Name, Question: question})
		}
	}
	decision.Final = strings.TrimSpace(text.String())

	logDecision(p.opts.logger, in, decision, string(resp.StopReason))
	return decision, nil
}

func anthropicTools(tools []binder.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: binder.Properties(),
					Required:   []string{binder.ArgQuestion},
				},
			},
		})
	}
	return out
}

func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Assistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	return out
}

func logDecision(logger zerolog.Logger, in orchestrator.PlanInput, d orchestrator.Decision, stop string) {
	ev := logger.Debug().
		Str("conversation_id", in.ConversationID).
		Int("iteration", in.Iteration).
		Int("calls", len(d.Calls)).
		Str("stop_reason", stop)
	if d.Done() {
		ev.Msg("planner finished")
		return
	}
	ev.Msg("planner requested calls")
}

var (
	_ orchestrator.Planner = (*Anthropic)(nil)
	_ MessageCreator       = (*api.Client)(nil)
)
