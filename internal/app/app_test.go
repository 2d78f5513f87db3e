package app

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/state"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

func specialist(t *testing.T, answer string) string {
	t.Helper()
	h := protocol.NewHandler(protocol.AgentCard{Name: "Test Agent"}, protocol.ResponderFunc(
		func(context.Context, protocol.Inbound) (string, error) { return answer, nil },
	), zerolog.Nop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func broadcastConfig(endpoints ...models.Endpoint) *config.Config {
	cfg := config.Default()
	cfg.Orchestrator.Planner = config.PlannerBroadcast
	cfg.Endpoints = endpoints
	return cfg
}

func TestNew_BroadcastEndToEnd(t *testing.T) {
	cfg := broadcastConfig(
		models.Endpoint{URL: specialist(t, "Order ORD12345 is pending, waiting for stock"), Name: "Order Agent", CapabilityID: "order"},
		models.Endpoint{URL: specialist(t, "SKU123 is out of stock"), Name: "Inventory Agent", CapabilityID: "inventory"},
	)

	var events []orchestrator.EventType
	a, err := New(cfg, WithEventHandler(func(e orchestrator.Event) { events = append(events, e.Type) }))
	require.NoError(t, err)
	defer a.Close()

	answer, err := a.Orchestrator.Handle(context.Background(), "c1", "Why hasn't ORD12345 shipped?")
	require.NoError(t, err)

	assert.Len(t, answer.Results, 2)
	assert.False(t, answer.Partial)
	assert.Contains(t, answer.Record.References, "ORD12345")
	assert.NotEmpty(t, answer.Record.CustomerMessage)
	assert.NotEmpty(t, events)
	assert.Len(t, a.Conversations.Snapshot("c1", 0), 4)
}

func TestNew_DuplicateConfigEndpoints(t *testing.T) {
	cfg := broadcastConfig(
		models.Endpoint{URL: "http://localhost:8101", CapabilityID: "order"},
		models.Endpoint{URL: "http://localhost:8102", CapabilityID: "order"},
	)
	_, err := New(cfg)
	assert.ErrorIs(t, err, registry.ErrDuplicateCapability)
}

func TestNew_RestoresPersistedEndpoints(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	db, err := state.OpenAndMigrate(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.SaveEndpoint(context.Background(), models.Endpoint{URL: "http://localhost:8105", Name: "Fraud Agent", CapabilityID: "fraud"}))
	require.NoError(t, db.SaveEndpoint(context.Background(), models.Endpoint{URL: "http://localhost:9999", CapabilityID: "order"}))
	require.NoError(t, db.Close())

	cfg := broadcastConfig(models.Endpoint{URL: "http://localhost:8101", CapabilityID: "order"})
	cfg.Context.PersistPath = dbPath

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.State)
	order, ok := a.Registry.Get("order")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8101", order.URL, "configured endpoint wins")
	_, ok = a.Registry.Get("fraud")
	assert.True(t, ok)
}

func TestNew_EndpointsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`endpoints:
  - url: http://localhost:8103
    name: Payment Agent
    capability_id: payment
`), 0o644))

	cfg := broadcastConfig()
	cfg.EndpointsFile = path

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Watcher)
	_, ok := a.Registry.Get("payment")
	assert.True(t, ok)
}

func TestNew_PlannerOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = ""
	t.Setenv("ANTHROPIC_API_KEY", "")

	planner := orchestrator.PlannerFunc(func(context.Context, orchestrator.PlanInput) (orchestrator.Decision, error) {
		return orchestrator.Decision{Final: "done"}, nil
	})
	a, err := New(cfg, WithPlanner(planner))
	require.NoError(t, err)

	answer, err := a.Orchestrator.Handle(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "done")
}

func TestNew_MissingAnthropicKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(config.Default())
	assert.Error(t, err)
}

func TestApp_Card(t *testing.T) {
	a, err := New(broadcastConfig())
	require.NoError(t, err)

	card := a.Card()
	assert.Equal(t, "http://127.0.0.1:8100", card.URL)
	assert.Equal(t, "Switchboard Orchestrator", card.Name)

	a.Config.Server.PublicURL = "https://switchboard.example.com/"
	assert.Equal(t, "https://switchboard.example.com", a.Card().URL)
}
