// Package protocol defines the JSON-RPC wire format spoken between the
// orchestrator and remote specialist agents, plus an HTTP handler that serves
// it for any Responder.
package protocol

import (
	"encoding/json"
	"time"
)

// JSON-RPC methods.
const (
	MethodSend   = "message/send"
	MethodStream = "message/stream"
)

// Version is the JSON-RPC protocol version carried in every envelope.
const Version = "2.0"

// AgentCardPath is where a specialist publishes its AgentCard.
const AgentCardPath = "/.well-known/agent.json"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Error categories reported in RPCError.Data.
const (
	CategoryInvalidRequest = "invalid_request"
	CategoryInternal       = "internal"
)

// SSE event names used by message/stream.
const (
	EventChunk = "chunk"
	EventError = "error"
	EventDone  = "done"
)

// Request is a JSON-RPC request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  Params          `json:"params"`
}

// Params carries one question for a specialist.
type Params struct {
	ConversationID string        `json:"conversation_id"`
	Message        Message       `json:"message"`
	Context        []ContextTurn `json:"context,omitempty"`
}

// Message is a single role-tagged message made of text parts.
type Message struct {
	MessageID string `json:"message_id,omitempty"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
}

// Part is one text fragment of a Message.
type Part struct {
	Text string `json:"text"`
}

// ContextTurn is a recent conversation turn sent alongside the question.
type ContextTurn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is a JSON-RPC response envelope. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  *Result         `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Result is the payload of a successful message/send.
type Result struct {
	Message Message `json:"message"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the application category of an error.
type ErrorData struct {
	Category string `json:"category,omitempty"`
}

// Category returns the error's category, or "" when none was sent.
func (e *RPCError) Category() string {
	if e == nil || e.Data == nil {
		return ""
	}
	return e.Data.Category
}

// Chunk is the data payload of a chunk event.
type Chunk struct {
	Text string `json:"text"`
}

// AgentCard describes a specialist for discovery.
type AgentCard struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
	Skills       []Skill      `json:"skills,omitempty"`
}

// Capabilities lists optional protocol features a specialist supports.
type Capabilities struct {
	Streaming bool `json:"streaming"`
}

// Skill is one advertised skill of a specialist.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Text joins all parts of the message.
func (m Message) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0].Text
	}
	var n int
	for _, p := range m.Parts {
		n += len(p.Text)
	}
	b := make([]byte, 0, n)
	for _, p := range m.Parts {
		b = append(b, p.Text...)
	}
	return string(b)
}

// TextMessage builds a single-part message.
func TextMessage(id, role, text string) Message {
	return Message{MessageID: id, Role: role, Parts: []Part{{Text: text}}}
}
