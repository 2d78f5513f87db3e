// Package binder turns capability descriptors into named, invocable tools for
// the reasoning loop. Tools are built from data at runtime; nothing is
// declared per specialist at compile time.
package binder

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ArgQuestion is the single argument every bound tool accepts.
const ArgQuestion = "question"

const toolPrefix = "ask_"

var validToolName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Invoker performs remote calls. *remote.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, targetURL, conversationID, question string, recent []models.Turn) models.InvocationResult
}

// Tool is one capability bound to a tool name.
type Tool struct {
	Name        string
	Description string
	Capability  models.Capability

	inv Invoker
}

// Call invokes the capability. The result is always labeled with the
// capability it came from.
func (t Tool) Call(ctx context.Context, conversationID, question string, recent []models.Turn) models.InvocationResult {
	res := t.inv.Invoke(ctx, t.Capability.URL, conversationID, question, recent)
	res.CapabilityID = t.Capability.ID
	res.DisplayName = t.Capability.DisplayName
	res.Question = question
	return res
}

// InputSchema returns the JSON schema of the tool's arguments.
func (t Tool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": Properties(),
		"required":   []string{ArgQuestion},
	}
}

// Properties returns the argument properties shared by every bound tool.
func Properties() map[string]interface{} {
	return map[string]interface{}{
		ArgQuestion: map[string]interface{}{
			"type":        "string",
			"description": "The question or instruction to send to the specialist agent",
		},
	}
}

// Table is an immutable dispatch table of bound tools.
type Table struct {
	tools  []Tool
	byName map[string]int
}

// Build binds every descriptor in snapshot. Output order follows snapshot
// order, so the same snapshot always yields the same table.
func Build(snapshot []models.Capability, inv Invoker) (*Table, error) {
	t := &Table{
		tools:  make([]Tool, 0, len(snapshot)),
		byName: make(map[string]int, len(snapshot)),
	}
	for _, c := range snapshot {
		name, err := ToolName(c.ID)
		if err != nil {
			return nil, err
		}
		if prev, exists := t.byName[name]; exists {
			return nil, &BindingError{
				CapabilityID: c.ID,
				ToolName:     name,
				Reason:       fmt.Sprintf("tool name collides with capability %q", t.tools[prev].Capability.ID),
			}
		}
		t.byName[name] = len(t.tools)
		t.tools = append(t.tools, Tool{
			Name:        name,
			Description: c.Description,
			Capability:  c,
			inv:         inv,
		})
	}
	return t, nil
}

// Tools returns the bound tools in binding order.
func (t *Table) Tools() []Tool {
	return append([]Tool(nil), t.tools...)
}

// Len returns the number of bound tools.
func (t *Table) Len() int {
	return len(t.tools)
}

// Lookup finds a tool by name.
func (t *Table) Lookup(name string) (Tool, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Tool{}, false
	}
	return t.tools[i], true
}

// Dispatch calls the tool with the given name. An unknown name yields a
// failed result rather than an error.
func (t *Table) Dispatch(ctx context.Context, name, conversationID, question string, recent []models.Turn) models.InvocationResult {
	tool, ok := t.Lookup(name)
	if !ok {
		res := models.Failed("", question, models.FailureProtocol, fmt.Sprintf("unknown tool: %s", name))
		res.DisplayName = name
		return res
	}
	return tool.Call(ctx, conversationID, question, recent)
}

// ToolName derives the tool name for a capability ID.
func ToolName(capabilityID string) (string, error) {
	var b strings.Builder
	b.WriteString(toolPrefix)
	lastUnderscore := true
	for _, r := range strings.ToLower(capabilityID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if name == strings.TrimRight(toolPrefix, "_") {
		return "", &BindingError{CapabilityID: capabilityID, Reason: "capability id has no usable characters"}
	}
	if !validToolName.MatchString(name) {
		return "", &BindingError{CapabilityID: capabilityID, ToolName: name, Reason: "tool name must be 1-64 characters of [a-zA-Z0-9_-]"}
	}
	return name, nil
}

// ParseQuestion extracts the question argument from raw tool input.
func ParseQuestion(input json.RawMessage) (string, error) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse tool input: %w", err)
	}
	if strings.TrimSpace(args.Question) == "" {
		return "", fmt.Errorf("tool input is missing %q", ArgQuestion)
	}
	return args.Question, nil
}

// Source supplies versioned capability snapshots. *registry.Registry satisfies it.
type Source interface {
	Snapshot() ([]models.Capability, uint64)
}

// Binder caches the table for a Source and rebuilds it only after the
// source's version changes.
type Binder struct {
	source Source
	inv    Invoker

	mu      sync.Mutex
	built   bool
	version uint64
	table   *Table
}

// New creates a Binder.
func New(source Source, inv Invoker) *Binder {
	return &Binder{source: source, inv: inv}
}

// Table returns the dispatch table for the current registry contents.
func (b *Binder) Table() (*Table, error) {
	caps, version := b.source.Snapshot()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built && b.version == version {
		return b.table, nil
	}
	table, err := Build(caps, b.inv)
	if err != nil {
		return nil, err
	}
	b.table = table
	b.version = version
	b.built = true
	return table, nil
}
