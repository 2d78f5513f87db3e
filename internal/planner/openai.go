package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ShayCichocki/switchboard/internal/api"
	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/remote"
)

// ChatCreator sends one chat completion request. *api.OpenAIClient satisfies it.
type ChatCreator interface {
	CreateChat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI plans with OpenAI or Azure OpenAI function calling.
type OpenAI struct {
	client ChatCreator
	opts   options
}

// NewOpenAI creates an OpenAI planner.
func NewOpenAI(client ChatCreator, opts ...Option) *OpenAI {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &OpenAI{client: client, opts: o}
}

// Plan implements orchestrator.Planner.
func (p *OpenAI) Plan(ctx context.Context, in orchestrator.PlanInput) (orchestrator.Decision, error) {
	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(p.opts.systemPrompt, in.Tools),
	}}
	for _, m := range Transcript(remote.Window(in.Turns, p.opts.history), in.Tools) {
		role := openai.ChatMessageRoleUser
		if m.Assistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	req := openai.ChatCompletionRequest{Messages: msgs}
	if len(in.Tools) > 0 {
		req.Tools = openAITools(in.Tools)
	}

	resp, err := p.client.CreateChat(ctx, req)
	if err != nil {
		return orchestrator.Decision{}, err
	}
	if len(resp.Choices) == 0 {
		return orchestrator.Decision{}, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	decision := orchestrator.Decision{Final: strings.TrimSpace(choice.Message.Content)}
	for _, tc := range choice.Message.ToolCalls {
		question, err := binder.ParseQuestion(json.RawMessage(tc.Function.Arguments))
		if err != nil {
			p.opts.logger.Warn().Err(err).Str("tool", tc.Function.Name).Msg("unusable tool arguments")
		}
		decision.Calls = append(decision.Calls, orchestrator.Call{Tool: tc.Function.Name, Question: question})
	}

	logDecision(p.opts.logger, in, decision, string(choice.FinishReason))
	return decision, nil
}

func openAITools(tools []binder.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema(),
			},
		})
	}
	return out
}

var (
	_ orchestrator.Planner = (*OpenAI)(nil)
	_ ChatCreator          = (*api.OpenAIClient)(nil)
)
