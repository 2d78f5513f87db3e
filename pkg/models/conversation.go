package models

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the end user.
	RoleUser Role = "user"
	// RoleAgent is a turn written by the orchestrator.
	RoleAgent Role = "agent"
	// RoleToolResult is the outcome of a specialist capability call.
	RoleToolResult Role = "tool_result"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleToolResult:
		return true
	default:
		return false
	}
}

// Turn is a single entry in a conversation.
type Turn struct {
	// Role is who produced the turn.
	Role Role `json:"role"`
	// Text is the turn content.
	Text string `json:"text"`
	// Timestamp is when the turn was appended.
	Timestamp time.Time `json:"timestamp"`
	// CapabilityID names the capability for tool-result turns.
	CapabilityID string `json:"capability_id,omitempty"`
	// RequestID groups the turns produced while handling one inbound request.
	RequestID string `json:"request_id,omitempty"`
}

// Conversation is an ordered sequence of turns identified by a stable ID.
type Conversation struct {
	ID    string `json:"conversation_id"`
	Turns []Turn `json:"turns"`
}

// LastUserTurn returns the most recent user turn, if any.
func (c Conversation) LastUserTurn() (Turn, bool) {
	return LastTurnWithRole(c.Turns, RoleUser)
}

// LastTurnWithRole scans turns backwards for the given role.
func LastTurnWithRole(turns []Turn, role Role) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == role {
			return turns[i], true
		}
	}
	return Turn{}, false
}
