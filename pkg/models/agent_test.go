package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"user is valid", RoleUser, true},
		{"agent is valid", RoleAgent, true},
		{"tool_result is valid", RoleToolResult, true},
		{"empty string is invalid", Role(""), false},
		{"assistant is invalid", Role("assistant"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Valid())
		})
	}
}

func TestEndpoint_Normalize(t *testing.T) {
	e := Endpoint{
		URL:          "  http://localhost:8102 ",
		Name:         " Inventory Agent",
		CapabilityID: "inventory\n",
		Description:  " Checks stock levels ",
	}

	assert.Equal(t, Endpoint{
		URL:          "http://localhost:8102",
		Name:         "Inventory Agent",
		CapabilityID: "inventory",
		Description:  "Checks stock levels",
	}, e.Normalize())
}

func TestCapability_Label(t *testing.T) {
	assert.Equal(t, "fraud", Capability{ID: "fraud"}.Label())
	assert.Equal(t, "Fraud Agent", Capability{ID: "fraud", DisplayName: "Fraud Agent"}.Label())
}

func TestCapability_Endpoint(t *testing.T) {
	c := Capability{
		ID:           "shipping",
		DisplayName:  "Shipping Agent",
		URL:          "http://localhost:8104",
		Description:  "Tracks packages",
		RegisteredAt: time.Now(),
	}

	assert.Equal(t, Endpoint{
		URL:          c.URL,
		Name:         c.DisplayName,
		CapabilityID: c.ID,
		Description:  c.Description,
	}, c.Endpoint())
}

func TestLastTurnWithRole(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Text: "first"},
		{Role: RoleToolResult, Text: "stock ok", CapabilityID: "inventory"},
		{Role: RoleUser, Text: "second"},
		{Role: RoleAgent, Text: "answer"},
	}

	got, ok := LastTurnWithRole(turns, RoleUser)
	require.True(t, ok)
	assert.Equal(t, "second", got.Text)

	_, ok = LastTurnWithRole(nil, RoleUser)
	assert.False(t, ok)

	last, ok := Conversation{ID: "c1", Turns: turns}.LastUserTurn()
	require.True(t, ok)
	assert.Equal(t, "second", last.Text)
}

func TestInvocationResult_Outcome(t *testing.T) {
	ok := InvocationResult{CapabilityID: "payment", Success: true, Text: "cleared"}
	assert.Equal(t, "cleared", ok.Outcome())

	failed := Failed("shipping", "where is it?", FailureUnreachable, "connection refused")
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Outcome(), "unreachable")
	assert.Contains(t, failed.Outcome(), "connection refused")

	remote := InvocationResult{Failure: &Failure{Kind: FailureRemote, Category: "not_found", Message: "no such order"}}
	assert.Equal(t, "remote_error (not_found): no such order", remote.Outcome())

	assert.Equal(t, "no response", InvocationResult{}.Outcome())
}

func TestSynthesisRecord_Unavailable(t *testing.T) {
	rec := SynthesisRecord{Findings: []Finding{
		{CapabilityID: "order", Available: true},
		{CapabilityID: "shipping", Available: false},
	}}

	got := rec.Unavailable()
	require.Len(t, got, 1)
	assert.Equal(t, "shipping", got[0].CapabilityID)
}
