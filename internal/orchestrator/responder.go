package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ShayCichocki/switchboard/internal/protocol"
)

// Respond lets the orchestrator serve the specialist protocol, so it can
// itself be a capability of another orchestrator.
func (o *Orchestrator) Respond(ctx context.Context, in protocol.Inbound) (string, error) {
	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	answer, err := o.Handle(ctx, conversationID, in.Question)
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			return "", protocol.NewAppError(protocol.CategoryInvalidRequest, "%s", err.Error())
		}
		return "", err
	}
	return answer.Text, nil
}

var _ protocol.Responder = (*Orchestrator)(nil)
