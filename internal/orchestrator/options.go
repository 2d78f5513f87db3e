package orchestrator

import (
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/convo"
	"github.com/ShayCichocki/switchboard/internal/synthesis"
)

// DefaultMaxIterations bounds deliberations per request.
const DefaultMaxIterations = 6

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Binder supplies the tool table for the current registry.
	Binder TableSource
	// Store holds conversation history.
	Store *convo.Store
	// Planner makes the deliberate decision.
	Planner Planner
}

// TableSource yields the current tool table. *binder.Binder satisfies it.
type TableSource interface {
	Table() (*binder.Table, error)
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	maxIterations int
	parallel      bool
	maxParallel   int
	synthesizer   *synthesis.Synthesizer
	onEvent       EventHandler
	logger        zerolog.Logger
}

// WithMaxIterations sets the deliberation limit per request.
func WithMaxIterations(n int) Option {
	return func(o *orchestratorOptions) { o.maxIterations = n }
}

// WithParallel runs the calls of one decision concurrently, at most max at a
// time. max <= 0 means no limit.
func WithParallel(enabled bool, max int) Option {
	return func(o *orchestratorOptions) {
		o.parallel = enabled
		o.maxParallel = max
	}
}

// WithSynthesizer sets the synthesizer used at finalization.
func WithSynthesizer(s *synthesis.Synthesizer) Option {
	return func(o *orchestratorOptions) { o.synthesizer = s }
}

// WithEventHandler registers a callback for progress events.
func WithEventHandler(h EventHandler) Option {
	return func(o *orchestratorOptions) { o.onEvent = h }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}
