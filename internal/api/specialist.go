package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/protocol"
)

// Specialist answers protocol questions with an LLM playing one role.
type Specialist struct {
	completer Completer
	role      Role
	logger    zerolog.Logger
}

// NewSpecialist creates a Specialist.
func NewSpecialist(completer Completer, role Role, logger zerolog.Logger) *Specialist {
	return &Specialist{completer: completer, role: role, logger: logger}
}

// Role returns the role the specialist plays.
func (s *Specialist) Role() Role {
	return s.role
}

// Card describes the specialist for discovery at the given public URL.
func (s *Specialist) Card(url, version string) protocol.AgentCard {
	return protocol.AgentCard{
		Name:        s.role.Name,
		Description: s.role.Description,
		URL:         url,
		Version:     version,
		Skills: []protocol.Skill{{
			ID:          s.role.ID,
			Name:        s.role.Name,
			Description: s.role.Description,
		}},
	}
}

// Respond implements protocol.Responder.
func (s *Specialist) Respond(ctx context.Context, in protocol.Inbound) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", protocol.NewAppError(protocol.CategoryInvalidRequest, "question is empty")
	}
	text, err := s.completer.Complete(ctx, s.role.Instructions, SpecialistPrompt(in))
	if err != nil {
		s.logger.Error().Err(err).Str("role", s.role.ID).Str("conversation_id", in.ConversationID).Msg("completion failed")
		return "", fmt.Errorf("%s: %w", s.role.Name, err)
	}
	if text == "" {
		return "", errors.New("model returned an empty answer")
	}
	return text, nil
}

// RespondStream implements protocol.StreamResponder. Completers without
// streaming support deliver the whole answer as one chunk.
func (s *Specialist) RespondStream(ctx context.Context, in protocol.Inbound, emit func(string) error) error {
	sc, ok := s.completer.(StreamCompleter)
	if !ok {
		text, err := s.Respond(ctx, in)
		if err != nil {
			return err
		}
		return emit(text)
	}
	if strings.TrimSpace(in.Question) == "" {
		return protocol.NewAppError(protocol.CategoryInvalidRequest, "question is empty")
	}
	if err := sc.CompleteStream(ctx, s.role.Instructions, SpecialistPrompt(in), emit); err != nil {
		s.logger.Error().Err(err).Str("role", s.role.ID).Str("conversation_id", in.ConversationID).Msg("streamed completion failed")
		return fmt.Errorf("%s: %w", s.role.Name, err)
	}
	return nil
}

// SpecialistPrompt renders the conversation context and the question as a
// single user prompt.
func SpecialistPrompt(in protocol.Inbound) string {
	if len(in.Context) == 0 {
		return in.Question
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range in.Context {
		fmt.Fprintf(&b, "[%s] %s\n", turn.Role, strings.TrimSpace(turn.Text))
	}
	b.WriteString("\nQuestion for you:\n")
	b.WriteString(in.Question)
	return b.String()
}

var _ protocol.StreamResponder = (*Specialist)(nil)
