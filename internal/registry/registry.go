// Package registry holds the catalog of remote specialist endpoints known to
// the orchestrator. It performs no network I/O.
package registry

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Registry is an insertion-ordered, in-memory set of capability descriptors.
// Capability IDs are unique at all times. It is safe for concurrent use.
type Registry struct {
	// order holds capability IDs in insertion order.
	order []string
	// byID maps capability IDs to descriptors.
	byID map[string]models.Capability
	// version increments on every successful mutation.
	version uint64
	// mu protects all fields.
	mu sync.RWMutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]models.Capability)}
}

// Register adds one endpoint. A duplicate capability ID is a caller error and
// leaves the registry unchanged.
func (r *Registry) Register(e models.Endpoint) (models.Capability, error) {
	c, err := newCapability(e)
	if err != nil {
		return models.Capability{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; exists {
		return models.Capability{}, &DuplicateCapabilityError{CapabilityID: c.ID}
	}
	r.insert(c)
	return c, nil
}

// RegisterAll adds every endpoint or none of them.
func (r *Registry) RegisterAll(endpoints []models.Endpoint) error {
	caps := make([]models.Capability, 0, len(endpoints))
	seen := make(map[string]bool, len(endpoints))
	for _, e := range endpoints {
		c, err := newCapability(e)
		if err != nil {
			return err
		}
		if seen[c.ID] {
			return &DuplicateCapabilityError{CapabilityID: c.ID}
		}
		seen[c.ID] = true
		caps = append(caps, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range caps {
		if _, exists := r.byID[c.ID]; exists {
			return &DuplicateCapabilityError{CapabilityID: c.ID}
		}
	}
	for _, c := range caps {
		r.insert(c)
	}
	return nil
}

// Remove deletes a capability by ID.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return &NotFoundError{CapabilityID: id}
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	return nil
}

// Get retrieves a descriptor by ID.
func (r *Registry) Get(id string) (models.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns a snapshot of all descriptors in insertion order.
func (r *Registry) List() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]models.Capability, 0, len(r.order))
	for _, id := range r.order {
		caps = append(caps, r.byID[id])
	}
	return caps
}

// Snapshot returns the descriptors together with the version they were read at.
func (r *Registry) Snapshot() ([]models.Capability, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]models.Capability, 0, len(r.order))
	for _, id := range r.order {
		caps = append(caps, r.byID[id])
	}
	return caps, r.version
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Version returns the mutation counter. Consumers compare it to detect changes.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// insert must be called with mu held.
func (r *Registry) insert(c models.Capability) {
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	r.version++
}

func newCapability(e models.Endpoint) (models.Capability, error) {
	e = e.Normalize()
	if e.CapabilityID == "" {
		return models.Capability{}, fmt.Errorf("%w: capability_id is required (name %q)", ErrInvalidEndpoint, e.Name)
	}
	if e.URL == "" {
		return models.Capability{}, fmt.Errorf("%w: url is required for %q", ErrInvalidEndpoint, e.CapabilityID)
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.Capability{}, fmt.Errorf("%w: url %q for %q is not absolute", ErrInvalidEndpoint, e.URL, e.CapabilityID)
	}
	return models.Capability{
		ID:           e.CapabilityID,
		DisplayName:  e.Name,
		URL:          e.URL,
		Description:  e.Description,
		RegisteredAt: time.Now(),
	}, nil
}
