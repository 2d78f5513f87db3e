// Package app wires configuration into a running orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ShayCichocki/switchboard/internal/api"
	"github.com/ShayCichocki/switchboard/internal/binder"
	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/convo"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/planner"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/remote"
	"github.com/ShayCichocki/switchboard/internal/server"
	"github.com/ShayCichocki/switchboard/internal/state"
	"github.com/ShayCichocki/switchboard/internal/synthesis"
	"github.com/ShayCichocki/switchboard/internal/version"
	"github.com/ShayCichocki/switchboard/internal/watch"
)

// App is a fully wired orchestrator.
type App struct {
	Config        *config.Config
	Registry      *registry.Registry
	Remote        *remote.Client
	Conversations *convo.Store
	Orchestrator  *orchestrator.Orchestrator
	// State is nil unless context.persist_path is set.
	State *state.DB
	// Watcher is nil unless endpoints_file is set.
	Watcher *watch.Watcher

	trackers []*api.TokenTracker
	logger   zerolog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	onEvent orchestrator.EventHandler
	planner orchestrator.Planner
	logger  zerolog.Logger
}

// WithEventHandler receives orchestrator progress events.
func WithEventHandler(h orchestrator.EventHandler) Option {
	return func(o *options) { o.onEvent = h }
}

// WithPlanner overrides the configured planner.
func WithPlanner(p orchestrator.Planner) Option {
	return func(o *options) { o.planner = p }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds an App from cfg. Duplicate or invalid endpoints in cfg are
// errors; persisted and file endpoints that collide are skipped with a
// warning.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Registry: registry.New(), logger: o.logger}
	if err := a.Registry.RegisterAll(cfg.Endpoints); err != nil {
		return nil, fmt.Errorf("register endpoints: %w", err)
	}

	var journal convo.Journal
	if cfg.Context.PersistPath != "" {
		db, err := state.OpenAndMigrate(cfg.Context.PersistPath)
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		a.State = db
		journal = db
		if err := a.restoreEndpoints(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		if cfg.Context.Retention > 0 {
			n, err := db.PurgeConversations(cfg.Context.Retention)
			if err != nil {
				db.Close()
				return nil, err
			}
			if n > 0 {
				o.logger.Info().Int64("conversations", n).Dur("retention", cfg.Context.Retention).Msg("purged idle conversations")
			}
		}
	}

	if cfg.EndpointsFile != "" {
		a.Watcher = watch.New(cfg.EndpointsFile, a.Registry, watch.Options{
			Logger: o.logger.With().Str("component", "watch").Logger(),
		})
		if _, err := a.Watcher.Sync(); err != nil {
			a.Close()
			return nil, fmt.Errorf("load endpoints file: %w", err)
		}
	}

	a.Remote = remote.New(remote.Options{
		Timeout: cfg.Remote.Timeout,
		Window:  cfg.Remote.Window,
		Stream:  cfg.Remote.Stream,
		Logger:  o.logger.With().Str("component", "remote").Logger(),
	})
	a.Conversations = convo.New(convo.Options{
		MaxTurns: cfg.Context.MaxTurns,
		Journal:  journal,
		Logger:   o.logger.With().Str("component", "convo").Logger(),
	})

	p := o.planner
	if p == nil {
		var err error
		if p, err = a.newPlanner(); err != nil {
			a.Close()
			return nil, err
		}
	}

	synth, err := a.newSynthesizer()
	if err != nil {
		a.Close()
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		orchestrator.WithParallel(cfg.Orchestrator.Parallel, cfg.Orchestrator.MaxParallel),
		orchestrator.WithSynthesizer(synth),
		orchestrator.WithLogger(o.logger.With().Str("component", "orchestrator").Logger()),
	}
	if o.onEvent != nil {
		orchOpts = append(orchOpts, orchestrator.WithEventHandler(o.onEvent))
	}
	a.Orchestrator = orchestrator.New(orchestrator.RequiredConfig{
		Binder:  binder.New(a.Registry, a.Remote),
		Store:   a.Conversations,
		Planner: p,
	}, orchOpts...)

	return a, nil
}

func (a *App) restoreEndpoints(ctx context.Context) error {
	saved, err := a.State.ListEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("restore endpoints: %w", err)
	}
	for _, ep := range saved {
		if _, err := a.Registry.Register(ep); err != nil {
			if errors.Is(err, registry.ErrDuplicateCapability) {
				a.logger.Warn().Str("capability", ep.CapabilityID).Msg("persisted endpoint shadowed by configuration")
				continue
			}
			return fmt.Errorf("restore endpoint %q: %w", ep.CapabilityID, err)
		}
	}
	return nil
}

func (a *App) newPlanner() (orchestrator.Planner, error) {
	cfg := a.Config
	popts := []planner.Option{
		planner.WithHistory(cfg.Orchestrator.History),
		planner.WithLogger(a.logger.With().Str("component", "planner").Logger()),
	}
	if cfg.Orchestrator.SystemPrompt != "" {
		popts = append(popts, planner.WithSystemPrompt(cfg.Orchestrator.SystemPrompt))
	}

	switch cfg.Orchestrator.Planner {
	case config.PlannerBroadcast:
		return planner.NewBroadcast(), nil
	case config.PlannerOpenAI:
		client, err := a.openAIClient()
		if err != nil {
			return nil, err
		}
		return planner.NewOpenAI(client, popts...), nil
	default:
		client, err := a.anthropicClient()
		if err != nil {
			return nil, err
		}
		return planner.NewAnthropic(client, popts...), nil
	}
}

func (a *App) newSynthesizer() (*synthesis.Synthesizer, error) {
	cfg := a.Config.Synthesis
	sopts := synthesis.Options{
		Judge:            synthesis.KeywordJudge{Precedence: cfg.RootCausePrecedence},
		ReferencePattern: cfg.ReferencePattern,
		Logger:           a.logger.With().Str("component", "synthesis").Logger(),
	}
	if cfg.DraftCustomerMessage {
		if cfg.Drafter == "llm" {
			completer, err := a.completer()
			if err != nil {
				return nil, fmt.Errorf("drafter: %w", err)
			}
			sopts.Drafter = api.NewDrafter(completer, cfg.Signature)
		} else {
			sopts.Drafter = synthesis.TemplateDrafter{Signature: cfg.Signature}
		}
	}
	s, err := synthesis.New(sopts)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return s, nil
}

// completer uses the planner's backend, Anthropic for the broadcast planner.
func (a *App) completer() (api.Completer, error) {
	if a.Config.Orchestrator.Planner == config.PlannerOpenAI {
		return a.openAIClient()
	}
	client, err := a.anthropicClient()
	if err != nil {
		return nil, err
	}
	return api.NewRunner(client), nil
}

func (a *App) anthropicClient() (*api.Client, error) {
	client, err := NewAnthropicClient(a.Config)
	if err != nil {
		return nil, err
	}
	a.trackers = append(a.trackers, client.Tracker())
	return client, nil
}

func (a *App) openAIClient() (*api.OpenAIClient, error) {
	client, err := NewOpenAIClient(a.Config)
	if err != nil {
		return nil, err
	}
	a.trackers = append(a.trackers, client.Tracker())
	return client, nil
}

// NewAnthropicClient builds an Anthropic client from cfg.
func NewAnthropicClient(cfg *config.Config) (*api.Client, error) {
	key, _ := config.GetAPIKey(cfg, config.ProviderAnthropic)
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		BaseURL:       cfg.Anthropic.BaseURL,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}
	return client, nil
}

// NewOpenAIClient builds an OpenAI or Azure OpenAI client from cfg.
func NewOpenAIClient(cfg *config.Config) (*api.OpenAIClient, error) {
	key, _ := config.GetAPIKey(cfg, config.ProviderOpenAI)
	client, err := api.NewOpenAIClient(api.OpenAIConfig{
		Model:           cfg.OpenAI.Model,
		APIKey:          key,
		BaseURL:         cfg.OpenAI.BaseURL,
		AzureEndpoint:   cfg.OpenAI.AzureEndpoint,
		AzureAPIVersion: cfg.OpenAI.AzureAPIVersion,
		MaxTokens:       cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return client, nil
}

// NewCompleter returns a text completer for provider.
func NewCompleter(cfg *config.Config, provider config.Provider) (api.Completer, error) {
	if provider == config.ProviderOpenAI {
		return NewOpenAIClient(cfg)
	}
	client, err := NewAnthropicClient(cfg)
	if err != nil {
		return nil, err
	}
	return api.NewRunner(client), nil
}

// Card is the agent card the orchestrator publishes.
func (a *App) Card() protocol.AgentCard {
	srv := a.Config.Server
	url := srv.PublicURL
	if url == "" {
		url = "http://" + srv.Addr
	}
	return protocol.AgentCard{
		Name:        srv.Name,
		Description: srv.Description,
		URL:         strings.TrimRight(url, "/"),
		Version:     version.Get(),
		Skills: []protocol.Skill{{
			ID:          "orchestrate",
			Name:        srv.Name,
			Description: "Answers requests by consulting registered specialist agents.",
		}},
	}
}

// Server returns the HTTP API for the app.
func (a *App) Server() *server.Server {
	opts := server.Options{
		Card:        a.Card(),
		Discoverer:  a.Remote,
		ReadTimeout: a.Config.Server.ReadTimeout,
		Logger:      a.logger,
	}
	if a.State != nil {
		opts.Endpoints = a.State
	}
	return server.New(a.Orchestrator, a.Conversations, a.Registry, opts)
}

// Serve runs the HTTP API, and the endpoints watcher when configured, until
// ctx is cancelled or either fails.
func (a *App) Serve(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		return a.Server().Run(ctx, a.Config.Server.Addr)
	})
	if a.Watcher != nil {
		a.logger.Info().Str("path", a.Watcher.Path()).Msg("watching endpoints file")
		p.Go(a.Watcher.Run)
	}
	err := p.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tokens reports LLM usage across every client the app created.
func (a *App) Tokens() (input, output int64, cost float64) {
	for _, t := range a.trackers {
		in, out := t.Total()
		input += in
		output += out
		cost += t.Cost()
	}
	return input, output, cost
}

// Close releases the state database.
func (a *App) Close() error {
	if a.State != nil {
		return a.State.Close()
	}
	return nil
}
