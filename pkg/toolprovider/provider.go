// Package toolprovider defines the core's view of the tool registry
// boundary: named tools resolved to callable handles. Grounded on
// pkg/agent/tool_executor.go's ToolExecutor interface and
// StubToolExecutor, generalized from MCP-specific tool routing to a plain
// name→handle resolution the Worker agent uses to run a tool the LLM asked
// for.
package toolprovider

import (
	"context"
	"fmt"
)

// Handle is a single resolved, callable tool.
type Handle interface {
	// Name is the tool's identifier as exposed to the LLM.
	Name() string
	// Description is surfaced to the LLM as the tool's usage hint.
	Description() string
	// Invoke runs the tool with JSON-encoded arguments and returns its
	// text result.
	Invoke(ctx context.Context, argumentsJSON string) (string, error)
}

// Provider resolves a named tool to a callable Handle.
type Provider interface {
	// Resolve looks up a tool by name. Returns an error if unknown.
	Resolve(ctx context.Context, name string) (Handle, error)
}

// ErrToolNotFound is returned by Resolve for an unregistered tool name.
type ErrToolNotFound struct{ Name string }

func (e *ErrToolNotFound) Error() string { return fmt.Sprintf("tool not found: %s", e.Name) }

// Stub is a Provider that returns canned responses for every resolved tool,
// for tests and for workers configured with tool names that have no real
// backing registry yet — mirrors StubToolExecutor.
type Stub struct {
	descriptions map[string]string
}

// NewStub creates a Stub provider. descriptions maps tool name to the
// description returned by Handle.Description; tools not present default to
// an empty description.
func NewStub(descriptions map[string]string) *Stub {
	return &Stub{descriptions: descriptions}
}

func (s *Stub) Resolve(_ context.Context, name string) (Handle, error) {
	return &stubHandle{name: name, description: s.descriptions[name]}, nil
}

type stubHandle struct {
	name        string
	description string
}

func (h *stubHandle) Name() string        { return h.name }
func (h *stubHandle) Description() string { return h.description }

func (h *stubHandle) Invoke(_ context.Context, argumentsJSON string) (string, error) {
	return fmt.Sprintf("[stub] tool %q invoked with args: %s", h.name, argumentsJSON), nil
}
