// Package llmclient defines the core's view of the LLM provider boundary.
// Only the interface is core. This package also ships two backends, OpenAI
// (openai.go) and the deterministic Scripted double (stub.go); the backend
// is chosen and wired in at startup.
//
// Grounded on pkg/agent/llm_client.go: a channel-based streaming API over a
// closed set of typed chunks, rather than an untyped callback with boolean
// flags.
package llmclient

import (
	"context"

	"github.com/agentfleet/hive/pkg/hierarchy"
)

// Client is the Go-side interface for calling an LLM provider.
type Client interface {
	// Generate sends a conversation to the LLM and returns a stream of
	// chunks. The returned channel is closed when the stream completes,
	// successfully or not; a terminal failure is delivered as an
	// *ErrorChunk rather than a Go error so callers can still observe
	// partial output already read from the channel.
	Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error)
}

// GenerateInput is one LLM call: a conversation plus the tools available to
// the model and the LLMParams resolved for the calling agent.
type GenerateInput struct {
	RunID       int64
	AgentID     string
	Messages    []Message
	Params      hierarchy.LLMParams
	Tools       []ToolDefinition // nil = no tools offered
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in the conversation sent to the LLM.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // populated on assistant messages that called tools
	ToolCallID string     // populated on RoleTool messages
	ToolName   string     // populated on RoleTool messages
}

// ToolDefinition describes one tool available to the model.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Chunk is the closed sum type of streaming events an LLM call can produce.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the concrete Chunk implementation.
type ChunkType string

const (
	ChunkTypeReasoning ChunkType = "reasoning"
	ChunkTypeText      ChunkType = "text"
	ChunkTypeToolCall  ChunkType = "tool_call"
	ChunkTypeUsage     ChunkType = "usage"
	ChunkTypeError     ChunkType = "error"
)

// ReasoningChunk carries a slice of the model's chain-of-thought text.
// Maps to an llm.reasoning event.
type ReasoningChunk struct{ Content string }

// TextChunk carries a slice of the model's answer text. Not coalesced —
// one event per chunk, because downstream subscribers rely on token
// cadence.
type TextChunk struct{ Content string }

// ToolCallChunk signals the model wants to invoke a tool.
type ToolCallChunk struct {
	CallID    string
	Name      string
	Arguments string
}

// UsageChunk reports token consumption for the call. When a backend emits
// one, it is the last chunk on a successful stream; a stream may also end
// without one.
type UsageChunk struct {
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	ThinkingTokens int
}

// ErrorChunk signals a transient or terminal provider error. Not retried at
// this layer — the agent maps it directly to a
// lifecycle.failed event.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *ReasoningChunk) chunkType() ChunkType { return ChunkTypeReasoning }
func (c *TextChunk) chunkType() ChunkType      { return ChunkTypeText }
func (c *ToolCallChunk) chunkType() ChunkType  { return ChunkTypeToolCall }
func (c *UsageChunk) chunkType() ChunkType     { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType     { return ChunkTypeError }

// Type exposes the concrete chunk's type tag without a type switch, for
// callers that only need the discriminator.
func Type(c Chunk) ChunkType { return c.chunkType() }
