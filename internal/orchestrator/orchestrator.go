package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/convo"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/synthesis"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

var (
	// ErrEmptyConversationID is returned when a request has no conversation id.
	ErrEmptyConversationID = errors.New("conversation id is required")
	// ErrEmptyInput is returned when the user text is blank.
	ErrEmptyInput = errors.New("user input is empty")
)

// Answer is the outcome of one handled request.
type Answer struct {
	ConversationID string                    `json:"conversation_id"`
	RequestID      string                    `json:"request_id"`
	Text           string                    `json:"answer"`
	Record         models.SynthesisRecord    `json:"synthesis"`
	Partial        bool                      `json:"partial"`
	Iterations     int                       `json:"iterations"`
	Results        []models.InvocationResult `json:"results"`
}

// Orchestrator answers user requests by consulting specialists.
// A single Orchestrator serves any number of concurrent requests.
type Orchestrator struct {
	binder  TableSource
	store   *convo.Store
	planner Planner

	maxIterations int
	parallel      bool
	maxParallel   int
	synth         *synthesis.Synthesizer
	onEvent       EventHandler
	logger        zerolog.Logger
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := orchestratorOptions{
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxIterations <= 0 {
		o.maxIterations = DefaultMaxIterations
	}
	if o.synthesizer == nil {
		o.synthesizer, _ = synthesis.New(synthesis.Options{Logger: o.logger})
	}

	return &Orchestrator{
		binder:        req.Binder,
		store:         req.Store,
		planner:       req.Planner,
		maxIterations: o.maxIterations,
		parallel:      o.parallel,
		maxParallel:   o.maxParallel,
		synth:         o.synthesizer,
		onEvent:       o.onEvent,
		logger:        o.logger,
	}
}

// Handle answers one user request within a conversation.
//
// Specialist failures never fail the request: they are recorded as failed
// results and reported in the synthesis. A planner failure or reaching the
// iteration limit yields a partial answer. Cancelling ctx abandons in-flight
// calls, discards their results and returns ctx.Err().
func (o *Orchestrator) Handle(ctx context.Context, conversationID, text string) (*Answer, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrEmptyConversationID
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	requestID := protocol.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = protocol.WithRequestID(ctx, requestID)
	}
	log := o.logger.With().Str("conversation_id", conversationID).Str("request_id", requestID).Logger()

	table, err := o.binder.Table()
	if err != nil {
		return nil, fmt.Errorf("bind capabilities: %w", err)
	}

	if err := o.store.Append(conversationID, models.Turn{
		Role:      models.RoleUser,
		Text:      text,
		RequestID: requestID,
	}); err != nil {
		return nil, fmt.Errorf("record user turn: %w", err)
	}

	o.emit(Event{Type: EventRequestStarted, ConversationID: conversationID, RequestID: requestID, Message: text})
	log.Info().Int("capabilities", table.Len()).Msg("request started")

	var (
		results    []models.InvocationResult
		final      string
		partial    bool
		iterations int
		tools      = table.Tools()
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iterations >= o.maxIterations {
			partial = true
			log.Warn().Int("max_iterations", o.maxIterations).Msg("iteration limit reached, finalizing")
			break
		}
		iterations++

		decision, err := o.planner.Plan(ctx, PlanInput{
			ConversationID: conversationID,
			Request:        text,
			Turns:          o.store.Snapshot(conversationID, 0),
			Tools:          tools,
			Results:        append([]models.InvocationResult(nil), results...),
			Iteration:      iterations,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			partial = true
			log.Error().Err(err).Int("iteration", iterations).Msg("planner failed, finalizing with gathered results")
			break
		}

		o.emit(Event{
			Type:           EventDeliberation,
			ConversationID: conversationID,
			RequestID:      requestID,
			Iteration:      iterations,
			Message:        describe(decision),
		})

		if decision.Done() {
			final = strings.TrimSpace(decision.Final)
			break
		}

		recent := o.store.Snapshot(conversationID, 0)
		batch := o.invoke(ctx, table, conversationID, requestID, iterations, decision.Calls, recent)
		if err := ctx.Err(); err != nil {
			log.Info().Msg("request cancelled, discarding in-flight results")
			return nil, err
		}

		for _, r := range batch {
			if err := o.store.Append(conversationID, models.Turn{
				Role:         models.RoleToolResult,
				Text:         r.Outcome(),
				CapabilityID: r.CapabilityID,
				RequestID:    requestID,
			}); err != nil {
				return nil, fmt.Errorf("record tool result: %w", err)
			}
		}
		results = append(results, batch...)
	}

	rec := o.synth.Synthesize(ctx, synthesis.Input{Request: text, Results: results})
	rec.Partial = rec.Partial || partial
	answerText := compose(final, rec, len(results))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.store.Append(conversationID, models.Turn{
		Role:      models.RoleAgent,
		Text:      answerText,
		RequestID: requestID,
	}); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	o.emit(Event{Type: EventFinalized, ConversationID: conversationID, RequestID: requestID, Iteration: iterations, Message: rec.RootCause})
	log.Info().
		Int("iterations", iterations).
		Int("calls", len(results)).
		Bool("partial", rec.Partial).
		Str("root_cause_source", rec.RootCauseSource).
		Msg("request finalized")

	return &Answer{
		ConversationID: conversationID,
		RequestID:      requestID,
		Text:           answerText,
		Record:         rec,
		Partial:        rec.Partial,
		Iterations:     iterations,
		Results:        results,
	}, nil
}

// invoke runs one decision's calls. Concurrent results are ordered by
// capability id; calls to the same capability keep their call order.
func (o *Orchestrator) invoke(ctx context.Context, table *binder.Table, conversationID, requestID string, iteration int, calls []Call, recent []models.Turn) []models.InvocationResult {
	run := func(c *Call) models.InvocationResult {
		question := strings.TrimSpace(c.Question)
		o.emit(Event{Type: EventCallStarted, ConversationID: conversationID, RequestID: requestID, Iteration: iteration, Tool: c.Tool, Question: question})

		var res models.InvocationResult
		if question == "" {
			res = models.Failed("", question, models.FailureProtocol, "empty question for "+c.Tool)
			if tool, ok := table.Lookup(c.Tool); ok {
				res.CapabilityID = tool.Capability.ID
				res.DisplayName = tool.Capability.DisplayName
			}
		} else {
			res = table.Dispatch(ctx, c.Tool, conversationID, question, recent)
		}

		o.emit(Event{Type: EventCallFinished, ConversationID: conversationID, RequestID: requestID, Iteration: iteration, Tool: c.Tool, Question: question, Result: &res, Timestamp: time.Now()})
		o.logger.Debug().
			Str("conversation_id", conversationID).
			Str("tool", c.Tool).
			Bool("success", res.Success).
			Dur("latency", res.Latency).
			Msg("capability call finished")
		return res
	}

	if !o.parallel || len(calls) < 2 {
		out := make([]models.InvocationResult, 0, len(calls))
		for i := range calls {
			if ctx.Err() != nil {
				break
			}
			out = append(out, run(&calls[i]))
		}
		return out
	}

	limit := o.maxParallel
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}
	mapper := iter.Mapper[Call, models.InvocationResult]{MaxGoroutines: limit}
	out := mapper.Map(calls, run)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapabilityID < out[j].CapabilityID
	})
	return out
}

func (o *Orchestrator) emit(e Event) {
	if o.onEvent == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	o.onEvent(e)
}

// compose builds the final answer text from the planner's closing text and
// the synthesis record.
func compose(final string, rec models.SynthesisRecord, calls int) string {
	if calls == 0 {
		if final != "" {
			return final
		}
		return "No specialist agents were consulted for this request."
	}
	rendered := synthesis.Render(rec)
	if final == "" {
		return rendered
	}
	return final + "\n\n---\n\n" + rendered
}

func describe(d Decision) string {
	if d.Done() {
		return "finalize"
	}
	names := make([]string, len(d.Calls))
	for i, c := range d.Calls {
		names[i] = c.Tool
	}
	return "call " + strings.Join(names, ", ")
}
