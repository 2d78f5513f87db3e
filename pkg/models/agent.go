package models

import (
	"strings"
	"time"
)

// Endpoint describes a remote specialist agent as supplied by an operator.
// It is the registration input for the capability registry.
type Endpoint struct {
	// URL is the base URL of the specialist's remote agent protocol endpoint.
	URL string `json:"url" yaml:"url" mapstructure:"url"`
	// Name is the human-readable display name (e.g. "Inventory Agent").
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// CapabilityID is the unique, stable identifier of the capability.
	CapabilityID string `json:"capability_id" yaml:"capability_id" mapstructure:"capability_id"`
	// Description tells the reasoning loop what the specialist is good at.
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

// Normalize returns a copy of the endpoint with surrounding whitespace removed.
func (e Endpoint) Normalize() Endpoint {
	return Endpoint{
		URL:          strings.TrimSpace(e.URL),
		Name:         strings.TrimSpace(e.Name),
		CapabilityID: strings.TrimSpace(e.CapabilityID),
		Description:  strings.TrimSpace(e.Description),
	}
}

// Capability is a registered capability descriptor. Its input shape is always
// a single free-text question. Descriptors are immutable once registered.
type Capability struct {
	// ID is the unique capability identifier.
	ID string `json:"capability_id"`
	// DisplayName is the specialist's display name.
	DisplayName string `json:"display_name"`
	// URL is the target URL the capability is bound to.
	URL string `json:"target_url"`
	// Description is the free-text description, passed verbatim to the planner.
	Description string `json:"description"`
	// RegisteredAt is when the descriptor entered the registry.
	RegisteredAt time.Time `json:"registered_at"`
}

// Label returns the display name, falling back to the capability ID.
func (c Capability) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID
}

// Endpoint converts the descriptor back to its registration form.
func (c Capability) Endpoint() Endpoint {
	return Endpoint{
		URL:          c.URL,
		Name:         c.DisplayName,
		CapabilityID: c.ID,
		Description:  c.Description,
	}
}
