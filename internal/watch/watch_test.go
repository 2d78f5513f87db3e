package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

const twoEndpoints = `endpoints:
  - url: http://localhost:8101
    name: Order Agent
    capability_id: order
    description: Manages order lifecycle, status tracking, and fulfillment coordination
  - url: http://localhost:8102
    name: Inventory Agent
    capability_id: inventory
    description: Checks stock levels, manages reservations, and handles backorders
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func ids(caps []models.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.ID
	}
	return out
}

func TestParse(t *testing.T) {
	eps, err := Parse([]byte(twoEndpoints))
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "order", eps[0].CapabilityID)
	assert.Equal(t, "Inventory Agent", eps[1].Name)

	eps, err = Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, eps)

	_, err = Parse([]byte("endpoints:\n  - url: http://a\n    capability_id: a\n    colour: red\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte("endpoints:\n  - url: http://a\n"))
	assert.ErrorContains(t, err, "capability_id are required")

	_, err = Parse([]byte("endpoints:\n  - {url: http://a, capability_id: a}\n  - {url: http://b, capability_id: a}\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestMarshalRoundTrip(t *testing.T) {
	eps, err := Parse([]byte(twoEndpoints))
	require.NoError(t, err)

	data, err := Marshal(eps)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, eps, again)
}

func TestLoadFile_Missing(t *testing.T) {
	eps, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	writeFile(t, path, twoEndpoints)

	reg := registry.New()
	_, err := reg.Register(models.Endpoint{URL: "http://localhost:8103", CapabilityID: "payment", Name: "Payment Agent"})
	require.NoError(t, err)

	w := New(path, reg, Options{Logger: zerolog.Nop()})

	changes, err := w.Sync()
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "inventory"}, changes.Added)
	assert.Equal(t, []string{"payment", "order", "inventory"}, ids(reg.List()))

	changes, err = w.Sync()
	require.NoError(t, err)
	assert.True(t, changes.Empty(), "unchanged file is a no-op")

	writeFile(t, path, `endpoints:
  - url: http://localhost:9101
    name: Order Agent
    capability_id: order
    description: moved
  - url: http://localhost:8103
    capability_id: payment
`)
	changes, err = w.Sync()
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory"}, changes.Removed)
	assert.Equal(t, []string{"order"}, changes.Updated)
	assert.Equal(t, []string{"payment"}, changes.Skipped)

	order, ok := reg.Get("order")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9101", order.URL)
	_, ok = reg.Get("payment")
	assert.True(t, ok, "capabilities the watcher does not own survive")

	writeFile(t, path, "endpoints: [")
	_, err = w.Sync()
	assert.Error(t, err)
	_, ok = reg.Get("order")
	assert.True(t, ok, "a broken file leaves the registry untouched")

	require.NoError(t, os.Remove(path))
	changes, err = w.Sync()
	require.NoError(t, err)
	assert.Equal(t, []string{"order"}, changes.Removed)
	assert.Equal(t, []string{"payment"}, ids(reg.List()))
}

func TestRun_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")

	reg := registry.New()
	var mu sync.Mutex
	var seen []Changes
	w := New(path, reg, Options{
		Debounce: 20 * time.Millisecond,
		Logger:   zerolog.Nop(),
		OnChange: func(c Changes) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, c)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to subscribe before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, twoEndpoints)

	require.Eventually(t, func() bool { return reg.Len() == 2 }, 3*time.Second, 10*time.Millisecond)

	writeFile(t, path, "endpoints: []\n")
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(seen), 2)
}
