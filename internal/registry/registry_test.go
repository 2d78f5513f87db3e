package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

func endpoint(id string) models.Endpoint {
	return models.Endpoint{
		URL:          "http://localhost:81/" + id,
		Name:         id + " agent",
		CapabilityID: id,
		Description:  "handles " + id,
	}
}

func ids(caps []models.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.ID
	}
	return out
}

func TestRegister_ListInsertionOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"order", "inventory", "payment"} {
		_, err := r.Register(endpoint(id))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"order", "inventory", "payment"}, ids(r.List()))
	assert.Equal(t, 3, r.Len())
}

func TestRegister_DuplicateLeavesRegistryUnchanged(t *testing.T) {
	r := New()
	_, err := r.Register(endpoint("order"))
	require.NoError(t, err)
	before := r.List()
	version := r.Version()

	dup := endpoint("order")
	dup.URL = "http://elsewhere:9000"
	_, err = r.Register(dup)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCapability))
	var dupErr *DuplicateCapabilityError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "order", dupErr.CapabilityID)

	assert.Equal(t, before, r.List())
	assert.Equal(t, version, r.Version())
	got, _ := r.Get("order")
	assert.Equal(t, "http://localhost:81/order", got.URL)
}

func TestRegisterAll_Atomic(t *testing.T) {
	r := New()
	_, err := r.Register(endpoint("fraud"))
	require.NoError(t, err)

	err = r.RegisterAll([]models.Endpoint{endpoint("order"), endpoint("fraud")})
	require.ErrorIs(t, err, ErrDuplicateCapability)
	assert.Equal(t, []string{"fraud"}, ids(r.List()))

	err = r.RegisterAll([]models.Endpoint{endpoint("order"), endpoint("order")})
	require.ErrorIs(t, err, ErrDuplicateCapability)
	assert.Equal(t, []string{"fraud"}, ids(r.List()))

	require.NoError(t, r.RegisterAll([]models.Endpoint{endpoint("order"), endpoint("shipping")}))
	assert.Equal(t, []string{"fraud", "order", "shipping"}, ids(r.List()))
}

func TestRegister_InvalidEndpoint(t *testing.T) {
	r := New()
	tests := []struct {
		name string
		e    models.Endpoint
	}{
		{"missing id", models.Endpoint{URL: "http://localhost:1"}},
		{"missing url", models.Endpoint{CapabilityID: "order"}},
		{"relative url", models.Endpoint{CapabilityID: "order", URL: "/order"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.e)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
	assert.Zero(t, r.Len())
}

func TestRemove(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAll([]models.Endpoint{endpoint("a"), endpoint("b"), endpoint("c")}))
	v := r.Version()

	require.NoError(t, r.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(r.List()))
	assert.Greater(t, r.Version(), v)

	err := r.Remove("b")
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "b", nf.CapabilityID)

	// Re-registration after removal is allowed.
	_, err = r.Register(endpoint("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(r.List()))
}

func TestList_ReturnsCopy(t *testing.T) {
	r := New()
	_, err := r.Register(endpoint("order"))
	require.NoError(t, err)

	caps := r.List()
	caps[0].URL = "http://mutated"

	got, ok := r.Get("order")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:81/order", got.URL)
}

func TestRegister_ConcurrentUniqueness(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Register(endpoint(fmt.Sprintf("cap-%d", i%10)))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, successes)
	assert.Equal(t, 10, r.Len())
}
