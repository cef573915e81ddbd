package hive

import (
	"context"

	"github.com/agentfleet/hive/pkg/cancel"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/llmclient"
)

// callbackHandler translates one agent's LLM chunk stream into typed
// eventbus events. It is bound to a single Source at construction and
// reused across every Generate call made during that agent's invocation —
// the per-turn tool-call tracking state resets between calls. Grounded on
// controller/streaming.go's collectStreamWithCallback, adapted from a
// delta-callback to a typed Chunk channel.
type callbackHandler struct {
	runID     int64
	source    eventbus.Source
	publisher eventbus.Publisher
	token     *cancel.Token

	toolCallSeq int
	lastTool    string
}

func newCallbackHandler(runID int64, source eventbus.Source, publisher eventbus.Publisher, token *cancel.Token) *callbackHandler {
	return &callbackHandler{runID: runID, source: source, publisher: publisher, token: token}
}

// drainResult is the fully-collected outcome of one Generate call.
type drainResult struct {
	Text      string
	Reasoning string
	ToolCalls []llmclient.ToolCall
	Usage     *llmclient.UsageChunk
}

// drain reads stream to completion, emitting one event per chunk via the
// handler, and returns the assembled text/tool-calls/usage. Returns
// cancel.ErrCancelled if the run's token fires mid-stream — the in-flight
// LLM call is allowed to keep producing chunks internally, but drain stops
// consuming and discards the remainder, matching the "in-flight calls may
// complete, but results must not trigger further dispatch" cancellation rule.
func (h *callbackHandler) drain(ctx context.Context, stream <-chan llmclient.Chunk) (*drainResult, error) {
	res := &drainResult{}
	h.toolCallSeq = 0
	h.lastTool = ""

	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				// A stream cut short by cancellation is not a normal end.
				if h.token != nil && h.token.IsCancelled() {
					return res, cancel.ErrCancelled
				}
				return res, nil
			}
			if err := h.handle(ctx, chunk, res); err != nil {
				return res, err
			}
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func (h *callbackHandler) handle(ctx context.Context, chunk llmclient.Chunk, res *drainResult) error {
	if h.token != nil && h.token.IsCancelled() {
		return cancel.ErrCancelled
	}

	switch c := chunk.(type) {
	case *llmclient.ReasoningChunk:
		if c.Content == "" {
			return nil
		}
		res.Reasoning += c.Content
		_, _ = h.publisher.Publish(ctx, h.runID, h.source, eventbus.LLMReasoning, map[string]any{
			"content": c.Content,
		})

	case *llmclient.TextChunk:
		if c.Content == "" {
			return nil
		}
		res.Text += c.Content
		_, _ = h.publisher.Publish(ctx, h.runID, h.source, eventbus.LLMStream, map[string]any{
			"content": c.Content,
		})

	case *llmclient.ToolCallChunk:
		res.ToolCalls = append(res.ToolCalls, llmclient.ToolCall{
			ID:        c.CallID,
			Name:      c.Name,
			Arguments: c.Arguments,
		})
		if c.Name != h.lastTool {
			h.toolCallSeq++
			h.lastTool = c.Name
			_, _ = h.publisher.Publish(ctx, h.runID, h.source, eventbus.LLMToolCall, map[string]any{
				"name":     c.Name,
				"call_id":  c.CallID,
				"sequence": h.toolCallSeq,
			})
		}

	case *llmclient.UsageChunk:
		res.Usage = c

	case *llmclient.ErrorChunk:
		_, _ = h.publisher.Publish(ctx, h.runID, h.source, eventbus.SystemError, map[string]any{
			"error":     c.Message,
			"retryable": c.Retryable,
		})
		return &llmError{message: c.Message}
	}
	return nil
}

// publishToolResult emits the llm.tool_result event once a dispatched tool
// (child agent or external tool) returns. Not part of handle/drain since
// tool execution happens between Generate calls, outside the chunk stream.
func (h *callbackHandler) publishToolResult(ctx context.Context, name, callID, result string) {
	_, _ = h.publisher.Publish(ctx, h.runID, h.source, eventbus.LLMToolResult, map[string]any{
		"name":    name,
		"call_id": callID,
		"result":  result,
	})
}

// llmError wraps a terminal ErrorChunk's message as a Go error.
type llmError struct{ message string }

func (e *llmError) Error() string { return e.message }
