package hive

import (
	"context"
	"fmt"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/cancel"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/llmclient"
)

// Agent is the common contract every tier of the hierarchy satisfies:
// prompt the LLM, optionally resolve tool calls (to child agents or to
// external tools), and return the final text.
type Agent interface {
	Invoke(ctx context.Context, task string) (string, error)
}

// toolResolver resolves one tool call made during an agent's turn and
// returns the text to feed back to the model as the tool's result.
type toolResolver func(ctx context.Context, call llmclient.ToolCall) (string, error)

// agentCore is the shared implementation behind Worker, TeamSupervisor, and
// GlobalSupervisor — mirrors BaseAgent delegating iteration strategy to a
// Controller, generalized here to a closed tool-calling loop instead of a
// pluggable strategy, since every tier in this hierarchy follows the exact
// same loop shape.
type agentCore struct {
	runID     int64
	source    eventbus.Source
	publisher eventbus.Publisher
	token     *cancel.Token

	llm    llmclient.Client
	params hierarchy.LLMParams

	systemPrompt  string
	tools         []llmclient.ToolDefinition
	resolve       toolResolver
	maxIterations int
}

// ErrMaxIterationsExceeded is returned when an agent's tool-calling loop
// runs past its configured MaxIterations without the model producing a
// final answer — a guard against a misbehaving model spinning forever.
var ErrMaxIterationsExceeded = fmt.Errorf("hive: agent exceeded max_iterations without a final answer")

// invoke drives the common agent loop described in the contract all three
// tiers share: started → (generate, drain, resolve tool calls)* → completed
// | failed | cancelled.
func (a *agentCore) invoke(ctx context.Context, task string) (string, error) {
	handler := newCallbackHandler(a.runID, a.source, a.publisher, a.token)

	_, _ = a.publisher.Publish(ctx, a.runID, a.source, eventbus.LifecycleStarted, nil)

	result, err := a.runLoop(ctx, handler, task)
	if err != nil {
		if isCancelled(err) {
			_, _ = a.publisher.Publish(ctx, a.runID, a.source, eventbus.LifecycleCancelled, nil)
		} else {
			_, _ = a.publisher.Publish(ctx, a.runID, a.source, eventbus.LifecycleFailed, map[string]any{
				"error": err.Error(),
			})
		}
		return "", err
	}

	_, _ = a.publisher.Publish(ctx, a.runID, a.source, eventbus.LifecycleCompleted, nil)
	return result, nil
}

func isCancelled(err error) bool {
	return err == cancel.ErrCancelled || err == context.Canceled || err == calltracker.ErrRunCancelled
}

func (a *agentCore) runLoop(ctx context.Context, handler *callbackHandler, task string) (string, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: a.systemPrompt},
		{Role: llmclient.RoleUser, Content: task},
	}

	maxIter := a.maxIterations
	if maxIter <= 0 {
		maxIter = 20
	}

	for iter := 0; iter < maxIter; iter++ {
		if a.token != nil {
			if err := a.token.ThrowIfCancelled(); err != nil {
				return "", err
			}
		}

		stream, err := a.llm.Generate(ctx, &llmclient.GenerateInput{
			RunID:    a.runID,
			AgentID:  a.source.AgentID,
			Messages: messages,
			Params:   a.params,
			Tools:    a.tools,
		})
		if err != nil {
			return "", fmt.Errorf("llm generate: %w", err)
		}

		drained, err := handler.drain(ctx, stream)
		if err != nil {
			return "", err
		}

		if len(drained.ToolCalls) == 0 {
			return drained.Text, nil
		}

		assistantMsg := llmclient.Message{Role: llmclient.RoleAssistant, Content: drained.Text, ToolCalls: drained.ToolCalls}
		messages = append(messages, assistantMsg)

		toolMsgs, err := a.runToolCalls(ctx, handler, drained.ToolCalls)
		if err != nil {
			return "", err
		}
		messages = append(messages, toolMsgs...)
	}

	return "", ErrMaxIterationsExceeded
}

// runToolCalls resolves every tool call from one turn concurrently,
// preserving the original call order in the returned tool messages.
// Concurrency safety for a given resolver (e.g. the Global Supervisor's
// sequential-mode semaphore) is the resolver's own responsibility.
func (a *agentCore) runToolCalls(ctx context.Context, handler *callbackHandler, calls []llmclient.ToolCall) ([]llmclient.Message, error) {
	type outcome struct {
		text string
		err  error
	}
	outcomes := make([]outcome, len(calls))

	done := make(chan struct{}, len(calls))
	for i, call := range calls {
		i, call := i, call
		go func() {
			defer func() { done <- struct{}{} }()
			text, err := a.resolve(ctx, call)
			outcomes[i] = outcome{text: text, err: err}
			if err == nil {
				handler.publishToolResult(ctx, call.Name, call.ID, text)
			}
		}()
	}
	for range calls {
		<-done
	}

	msgs := make([]llmclient.Message, 0, len(calls))
	for i, call := range calls {
		if outcomes[i].err != nil {
			return nil, outcomes[i].err
		}
		msgs = append(msgs, llmclient.Message{
			Role:       llmclient.RoleTool,
			Content:    outcomes[i].text,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return msgs, nil
}
