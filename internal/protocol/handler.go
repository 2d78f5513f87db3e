package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Inbound is a decoded question addressed to a Responder.
type Inbound struct {
	ConversationID string
	MessageID      string
	Question       string
	Context        []ContextTurn
}

// Responder answers questions arriving over the protocol.
type Responder interface {
	Respond(ctx context.Context, in Inbound) (string, error)
}

// StreamResponder is implemented by responders that can emit partial output.
// Responders that only implement Responder are streamed as a single chunk.
type StreamResponder interface {
	Responder
	RespondStream(ctx context.Context, in Inbound, emit func(chunk string) error) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, in Inbound) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, in Inbound) (string, error) {
	return f(ctx, in)
}

// Handler serves the agent card and JSON-RPC endpoint for one Responder.
type Handler struct {
	card      AgentCard
	responder Responder
	logger    zerolog.Logger
}

// NewHandler creates a Handler. The card is served at AgentCardPath and
// JSON-RPC requests are accepted on every other path.
func NewHandler(card AgentCard, responder Responder, logger zerolog.Logger) *Handler {
	if _, ok := responder.(StreamResponder); ok {
		card.Capabilities.Streaming = true
	}
	return &Handler{card: card, responder: responder, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == AgentCardPath {
		h.serveCard(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, Response{
			JSONRPC: Version,
			Error:   &RPCError{Code: CodeParseError, Message: "invalid JSON: " + err.Error(), Data: &ErrorData{Category: CategoryInvalidRequest}},
		})
		return
	}

	if rpcErr := validate(req); rpcErr != nil {
		writeJSON(w, http.StatusOK, Response{JSONRPC: Version, ID: req.ID, Error: rpcErr})
		return
	}

	in := Inbound{
		ConversationID: req.Params.ConversationID,
		MessageID:      req.Params.Message.MessageID,
		Question:       req.Params.Message.Text(),
		Context:        req.Params.Context,
	}

	h.logger.Debug().
		Str("method", req.Method).
		Str("conversation_id", in.ConversationID).
		Int("context_turns", len(in.Context)).
		Msg("inbound message")

	if req.Method == MethodStream {
		h.serveStream(w, r, in)
		return
	}

	text, err := h.responder.Respond(r.Context(), in)
	if err != nil {
		h.logger.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("responder failed")
		writeJSON(w, http.StatusOK, Response{JSONRPC: Version, ID: req.ID, Error: toRPCError(err)})
		return
	}
	writeJSON(w, http.StatusOK, Response{
		JSONRPC: Version,
		ID:      req.ID,
		Result:  &Result{Message: TextMessage("", "agent", text)},
	})
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, in Inbound) {
	sse := NewSSEWriter(w)
	if sse == nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var err error
	if sr, ok := h.responder.(StreamResponder); ok {
		err = sr.RespondStream(r.Context(), in, sse.SendChunk)
	} else {
		var text string
		text, err = h.responder.Respond(r.Context(), in)
		if err == nil {
			err = sse.SendChunk(text)
		}
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("stream responder failed")
		_ = sse.SendError(toRPCError(err))
		return
	}
	_ = sse.SendDone()
}

func (h *Handler) serveCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.card)
}

func validate(req Request) *RPCError {
	if req.JSONRPC != Version {
		return &RPCError{Code: CodeInvalidRequest, Message: "jsonrpc must be \"2.0\"", Data: &ErrorData{Category: CategoryInvalidRequest}}
	}
	if req.Method != MethodSend && req.Method != MethodStream {
		return &RPCError{Code: CodeMethodNotFound, Message: "unknown method " + req.Method, Data: &ErrorData{Category: CategoryInvalidRequest}}
	}
	if strings.TrimSpace(req.Params.Message.Text()) == "" {
		return &RPCError{Code: CodeInvalidParams, Message: "message has no text", Data: &ErrorData{Category: CategoryInvalidRequest}}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
