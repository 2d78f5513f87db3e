// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Orchestrator answers user requests and the specialist protocol.
type Orchestrator interface {
	protocol.Responder
	Handle(ctx context.Context, conversationID, text string) (*orchestrator.Answer, error)
}

// Conversations is the read and delete side of the conversation store.
type Conversations interface {
	Snapshot(id string, n int) []models.Turn
	Remove(id string) bool
	IDs() []string
}

// Registry is the capability registry as seen by the API.
type Registry interface {
	List() []models.Capability
	Register(e models.Endpoint) (models.Capability, error)
	Remove(id string) error
	Version() uint64
}

// EndpointStore persists endpoints added through the API.
type EndpointStore interface {
	SaveEndpoint(ctx context.Context, e models.Endpoint) error
	DeleteEndpoint(ctx context.Context, capabilityID string) error
}

// Discoverer fetches a specialist's agent card.
type Discoverer interface {
	Discover(ctx context.Context, baseURL string) (protocol.AgentCard, error)
}

// Options configures a Server.
type Options struct {
	// Card is served at the agent card path.
	Card protocol.AgentCard
	// Endpoints, when set, persists runtime registrations.
	Endpoints EndpointStore
	// Discoverer, when set, fills missing endpoint fields from the agent card.
	Discoverer  Discoverer
	ReadTimeout time.Duration
	Logger      zerolog.Logger
}

// Server is the orchestrator HTTP API.
type Server struct {
	orch     Orchestrator
	convs    Conversations
	registry Registry
	opts     Options
	mux      *http.ServeMux
	logger   zerolog.Logger
}

// New creates a Server.
func New(orch Orchestrator, convs Conversations, reg Registry, opts Options) *Server {
	s := &Server{
		orch:     orch,
		convs:    convs,
		registry: reg,
		opts:     opts,
		mux:      http.NewServeMux(),
		logger:   opts.Logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /v1/conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /v1/conversations/{id}/messages", s.handleMessage)
	s.mux.HandleFunc("GET /v1/conversations/{id}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /v1/conversations/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("GET /v1/capabilities", s.handleListCapabilities)
	s.mux.HandleFunc("POST /v1/capabilities", s.handleAddCapability)
	s.mux.HandleFunc("DELETE /v1/capabilities/{id}", s.handleRemoveCapability)
	s.mux.Handle("/", protocol.NewHandler(s.opts.Card, s.orch, s.logger))
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return Middleware(s.mux, s.logger)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	return Serve(ctx, addr, s.Handler(), s.opts.ReadTimeout, s.logger)
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	answer, err := s.orch.Handle(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyInput), errors.Is(err, orchestrator.ErrEmptyConversationID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, binder.ErrBinding):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			s.logger.Error().Err(err).Str("request_id", protocol.RequestID(r.Context())).Msg("request failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type conversationResponse struct {
	ConversationID string        `json:"conversation_id"`
	Turns          []models.Turn `json:"turns"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"conversations": s.convs.IDs()})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns := s.convs.Snapshot(id, 0)
	if turns == nil {
		turns = []models.Turn{}
	}
	writeJSON(w, http.StatusOK, conversationResponse{ConversationID: id, Turns: turns})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.convs.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %q not found", r.PathValue("id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCapabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]models.Capability{"capabilities": s.registry.List()})
}

type addCapabilityRequest struct {
	models.Endpoint
	// Discover fills empty fields from the specialist's agent card.
	Discover bool `json:"discover"`
}

func (s *Server) handleAddCapability(w http.ResponseWriter, r *http.Request) {
	var req addCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	ep := req.Endpoint.Normalize()

	if req.Discover && s.opts.Discoverer != nil && ep.URL != "" {
		card, err := s.opts.Discoverer.Discover(r.Context(), ep.URL)
		if err != nil {
			writeError(w, http.StatusBadGateway, "discover: "+err.Error())
			return
		}
		ep = fromCard(ep, card)
	}

	capability, err := s.registry.Register(ep)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateCapability):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if s.opts.Endpoints != nil {
		if err := s.opts.Endpoints.SaveEndpoint(r.Context(), ep); err != nil {
			s.logger.Warn().Err(err).Str("capability", capability.ID).Msg("failed to persist endpoint")
		}
	}
	s.logger.Info().Str("capability", capability.ID).Str("url", capability.URL).Msg("capability registered")
	writeJSON(w, http.StatusCreated, capability)
}

func (s *Server) handleRemoveCapability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Remove(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.opts.Endpoints != nil {
		if err := s.opts.Endpoints.DeleteEndpoint(r.Context(), id); err != nil {
			s.logger.Warn().Err(err).Str("capability", id).Msg("failed to delete persisted endpoint")
		}
	}
	s.logger.Info().Str("capability", id).Msg("capability removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"service":          s.opts.Card.Name,
		"version":          s.opts.Card.Version,
		"capabilities":     len(s.registry.List()),
		"registry_version": s.registry.Version(),
	})
}

func fromCard(ep models.Endpoint, card protocol.AgentCard) models.Endpoint {
	if ep.Name == "" {
		ep.Name = card.Name
	}
	if ep.Description == "" {
		ep.Description = card.Description
	}
	if ep.CapabilityID == "" && len(card.Skills) > 0 {
		ep.CapabilityID = card.Skills[0].ID
	}
	if ep.CapabilityID == "" {
		ep.CapabilityID = strings.ToLower(strings.Join(strings.Fields(strings.TrimSuffix(card.Name, " Agent")), "_"))
	}
	return ep.Normalize()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
