package hive

import (
	"context"
	"fmt"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/llmclient"
)

// dispatchBlockedMessage is the sentinel text returned to the dispatching
// supervisor's LLM when CallTracker blocks a duplicate dispatch.
func dispatchBlockedMessage(name string) string {
	return fmt.Sprintf("[%s] already executed; reuse previous result", name)
}

// TeamSupervisor prompts its own LLM with one tool per configured worker.
// Dispatch to a worker goes through the run's CallTracker for at-most-once
// enforcement when the team opts into prevent_duplicate.
type TeamSupervisor struct {
	core *agentCore
	name string

	workers          map[string]*Worker
	tracker          *calltracker.Tracker
	preventDuplicate bool

	accumulator *contextAccumulator
	shareCtx    bool
}

// Invoke implements Agent. If context sharing applies to this team (its own
// share_context or the hierarchy's global flag), the accumulator's prior
// results are prepended to task before the LLM ever sees it.
func (t *TeamSupervisor) Invoke(ctx context.Context, task string) (string, error) {
	if t.shareCtx {
		task = t.accumulator.prefixPrompt(task)
	}
	return t.core.invoke(ctx, task)
}

// dispatchResolver dispatches a worker tool call: consults the tracker
// for duplicate suppression, emits dispatch.worker, then runs the worker.
func (t *TeamSupervisor) dispatchResolver(publisher eventbus.Publisher) toolResolver {
	return func(ctx context.Context, call llmclient.ToolCall) (string, error) {
		worker, ok := t.workers[call.Name]
		if !ok {
			return "", fmt.Errorf("team %q has no worker tool %q", t.name, call.Name)
		}

		task := argumentToTask(call.Arguments)

		rec, duplicate, err := t.tracker.Open(t.name, call.Name, task, t.preventDuplicate)
		if err != nil {
			return "", err
		}
		if duplicate {
			_, _ = publisher.Publish(ctx, t.core.runID, t.core.source, eventbus.SystemWarning, map[string]any{
				"reason": "duplicate",
				"team":   t.name,
				"worker": call.Name,
			})
			return dispatchBlockedMessage(call.Name), nil
		}

		_, _ = publisher.Publish(ctx, t.core.runID, t.core.source, eventbus.DispatchWorker, map[string]any{
			"team":   t.name,
			"worker": call.Name,
		})

		result, err := worker.Invoke(ctx, task)
		if err != nil {
			t.tracker.Close(rec.CallID, calltracker.StatusFailed, "")
			return "", err
		}
		t.tracker.Close(rec.CallID, calltracker.StatusCompleted, result)
		return result, nil
	}
}

// argumentToTask extracts the sub-task text the model passed in a worker
// tool call's JSON arguments. Tools are defined with a single "task" string
// parameter (see taskArgumentSchema in tools.go), so a plain passthrough
// of the raw JSON is acceptable when the shape doesn't match — the worker's
// own LLM sees it as its user message either way.
func argumentToTask(argumentsJSON string) string {
	task, ok := extractStringField(argumentsJSON, "task")
	if !ok {
		return argumentsJSON
	}
	return task
}
